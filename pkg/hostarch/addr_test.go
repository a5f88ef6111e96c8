// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hostarch

import "testing"

func TestAlignUp(t *testing.T) {
	for _, test := range []struct {
		addr   Addr
		align  uint64
		want   Addr
		wantOk bool
	}{
		{0, PageSize, 0, true},
		{1, PageSize, PageSize, true},
		{PageSize, PageSize, PageSize, true},
		{0x1234, 0x1000, 0x2000, true},
		{0x1234, 0x10, 0x1240, true},
		{^Addr(0), PageSize, 0, false},
	} {
		got, ok := test.addr.AlignUp(test.align)
		if ok != test.wantOk || (ok && got != test.want) {
			t.Errorf("%v.AlignUp(%#x): got (%v, %t), want (%v, %t)", test.addr, test.align, got, ok, test.want, test.wantOk)
		}
	}
}

func TestToRange(t *testing.T) {
	if _, ok := Addr(^uint64(0) - 1).ToRange(2); ok {
		t.Errorf("ToRange overflow was not detected")
	}
	ar, ok := Addr(0x100).ToRange(0x100)
	if !ok || ar != (AddrRange{0x100, 0x200}) {
		t.Errorf("ToRange: got (%v, %t), want ([0x100, 0x200), true)", ar, ok)
	}
}

func TestAddrRangePredicates(t *testing.T) {
	a := AddrRange{0x100, 0x200}
	for _, test := range []struct {
		name       string
		b          AddrRange
		overlaps   bool
		adjoins    bool
		isSuperset bool
	}{
		{"identical", AddrRange{0x100, 0x200}, true, true, true},
		{"interior", AddrRange{0x150, 0x160}, true, true, true},
		{"touching below", AddrRange{0x0, 0x100}, false, true, false},
		{"touching above", AddrRange{0x200, 0x300}, false, true, false},
		{"gap above", AddrRange{0x201, 0x300}, false, false, false},
		{"straddling", AddrRange{0x1f0, 0x210}, true, true, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := a.Overlaps(test.b); got != test.overlaps {
				t.Errorf("%v.Overlaps(%v): got %t, want %t", a, test.b, got, test.overlaps)
			}
			if got := a.Adjoins(test.b); got != test.adjoins {
				t.Errorf("%v.Adjoins(%v): got %t, want %t", a, test.b, got, test.adjoins)
			}
			if got := a.IsSupersetOf(test.b); got != test.isSuperset {
				t.Errorf("%v.IsSupersetOf(%v): got %t, want %t", a, test.b, got, test.isSuperset)
			}
		})
	}
}

func TestUnion(t *testing.T) {
	a := AddrRange{0x100, 0x200}
	for _, test := range []struct {
		b       AddrRange
		want    AddrRange
		wantLen uint64
	}{
		{AddrRange{0x180, 0x280}, AddrRange{0x100, 0x280}, 0x180},
		{AddrRange{0x0, 0x100}, AddrRange{0x0, 0x200}, 0x200},
		{AddrRange{0x150, 0x160}, AddrRange{0x100, 0x200}, 0x100},
	} {
		got := a.Union(test.b)
		if got != test.want {
			t.Errorf("%v.Union(%v): got %v, want %v", a, test.b, got, test.want)
		}
		if l := got.Length(); l != test.wantLen {
			t.Errorf("%v.Length(): got %#x, want %#x", got, l, test.wantLen)
		}
	}
}
