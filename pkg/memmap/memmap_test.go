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

package memmap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/memblock/pkg/memblock"
)

const testTOML = `
memory_capacity = 8
reserved_capacity = 8

[[memory]]
name = "low"
base = 0
size = "640K"

[[memory]]
name = "high"
base = "1M"
size = "15M"

[[reserved]]
name = "bios data"
base = 0
size = "4K"

[[reserved]]
name = "kernel"
base = 0x100000
size = "0x200000"

[[ops]]
op = "alloc"
size = "2M"
align = "2M"
direction = "top-down"

[[ops]]
op = "free"
base = "4K"
size = "4K"
`

const testYAML = `
memory_capacity: 8
reserved_capacity: 8
memory:
  - name: low
    base: 0
    size: 640K
  - name: high
    base: 1M
    size: 15M
reserved:
  - name: bios data
    base: 0
    size: 4K
  - name: kernel
    base: 0x100000
    size: 0x200000
ops:
  - op: alloc
    size: 2M
    align: 2M
    direction: top-down
  - op: free
    base: 4K
    size: 4K
`

func TestDecodeFormatsAgree(t *testing.T) {
	fromTOML, err := Decode(strings.NewReader(testTOML), FormatTOML)
	if err != nil {
		t.Fatalf("Decode(toml): %v", err)
	}
	fromYAML, err := Decode(strings.NewReader(testYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Decode(yaml): %v", err)
	}
	if diff := cmp.Diff(fromTOML, fromYAML); diff != "" {
		t.Errorf("toml and yaml maps differ (-toml +yaml):\n%s", diff)
	}

	want := []Range{
		{Name: "low", Base: 0, Size: 640 << 10},
		{Name: "high", Base: 1 << 20, Size: 15 << 20},
	}
	if diff := cmp.Diff(want, fromTOML.Memory); diff != "" {
		t.Errorf("memory mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAndReplay(t *testing.T) {
	m, err := Decode(strings.NewReader(testTOML), FormatTOML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mb, err := m.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := mb.Memory.Regions(), []memblock.Region{{Base: 0, Size: 640 << 10}, {Base: 1 << 20, Size: 15 << 20}}; !cmp.Equal(got, want) {
		t.Errorf("memory: got %v, want %v", got, want)
	}

	// The free op targets a range that is not reserved.
	results, err := m.Replay(mb, true)
	if !errors.Is(err, memblock.ErrRangeNotTracked) {
		t.Errorf("Replay: got %v, want %v", err, memblock.ErrRangeNotTracked)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("alloc failed: %v", results[0].Err)
	}
	if got, want := results[0].Base, uint64(14<<20); got != want {
		t.Errorf("alloc base: got %#x, want %#x", got, want)
	}
	if err := mb.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestReplayStopsAtFirstError(t *testing.T) {
	m := &Map{
		Memory: []Range{{Base: 0, Size: 0x10000}},
		Ops: []Op{
			{Op: OpFree, Base: 0, Size: 0x1000},
			{Op: OpReserve, Base: 0, Size: 0x1000},
		},
	}
	mb, err := m.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	results, err := m.Replay(mb, false)
	if err == nil || len(results) != 1 {
		t.Fatalf("Replay: got (%d results, %v), want 1 result and an error", len(results), err)
	}
	if mb.IsReserved(0, 0x1000) {
		t.Errorf("op after the failure was applied")
	}
}

func TestBuildCapacity(t *testing.T) {
	m := &Map{
		MemoryCapacity: 1,
		Memory: []Range{
			{Base: 0, Size: 0x1000},
			{Base: 0x10000, Size: 0x1000},
		},
	}
	if _, err := m.Build(); !errors.Is(err, memblock.ErrCapacityExceeded) {
		t.Errorf("Build: got %v, want %v", err, memblock.ErrCapacityExceeded)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, test := range []struct {
		name   string
		format Format
		data   string
	}{
		{"unknown toml key", FormatTOML, "[[memory]]\nbase = 0\nsize = 1\nflags = 3\n"},
		{"unknown yaml key", FormatYAML, "memory:\n  - base: 0\n    size: 1\n    flags: 3\n"},
		{"zero size", FormatTOML, "[[memory]]\nbase = 0\nsize = 0\n"},
		{"bad quantity", FormatYAML, "memory:\n  - base: 12Q\n    size: 1\n"},
		{"negative", FormatTOML, "[[memory]]\nbase = -1\nsize = 1\n"},
		{"unknown op", FormatTOML, "[[ops]]\nop = \"steal\"\nsize = 1\n"},
		{"align on reserve", FormatTOML, "[[ops]]\nop = \"reserve\"\nsize = 1\nalign = 4096\n"},
		{"bad direction", FormatYAML, "ops:\n  - op: alloc\n    size: 1\n    direction: sideways\n"},
		{"unknown format", Format("json"), "{}"},
	} {
		t.Run(test.name, func(t *testing.T) {
			if m, err := Decode(strings.NewReader(test.data), test.format); err == nil {
				t.Errorf("Decode succeeded: %+v", m)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{"map.toml": testTOML, "map.yml": testYAML} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		m, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if got := len(m.Ops); got != 2 {
			t.Errorf("Load(%q): got %d ops, want 2", path, got)
		}
	}
	if _, err := Load(filepath.Join(dir, "map.ini")); err == nil {
		t.Errorf("Load of .ini succeeded")
	}
}

func TestParseQuantity(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "4096", want: 4096},
		{in: "0x9fc00", want: 0x9fc00},
		{in: "0X10", want: 0x10},
		{in: "640K", want: 640 << 10},
		{in: "2m", want: 2 << 20},
		{in: "4G", want: 4 << 30},
		{in: "1T", want: 1 << 40},
		{in: "0x10M", want: 0x10 << 20},
		{in: "1_000", want: 1000},
		{in: "", wantErr: true},
		{in: "K", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "16777216T", wantErr: true},
	} {
		got, err := ParseQuantity(test.in)
		if (err != nil) != test.wantErr || (err == nil && got != test.want) {
			t.Errorf("ParseQuantity(%q): got (%v, %v), want (%v, error %t)", test.in, got, err, test.want, test.wantErr)
		}
	}
}
