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

package memblock

import (
	"fmt"

	"gvisor.dev/memblock/pkg/hostarch"
)

// Region is a half-open physical address range [Base, Base+Size).
//
// A Region held in a Table always has Size > 0 and Base+Size <= 2^64-1. The
// zero Region only appears in unused slots.
type Region struct {
	Base uint64
	Size uint64
}

// makeRegion validates base and size and returns the corresponding Region.
func makeRegion(base, size uint64) (Region, error) {
	if size == 0 {
		return Region{}, fmt.Errorf("[%#x, +0): %w", base, ErrInvalidRange)
	}
	ar, ok := hostarch.Addr(base).ToRange(size)
	if !ok {
		return Region{}, fmt.Errorf("[%#x, +%#x) overflows: %w", base, size, ErrInvalidRange)
	}
	return regionOf(ar), nil
}

// regionOf returns the Region covering ar.
func regionOf(ar hostarch.AddrRange) Region {
	return Region{Base: uint64(ar.Start), Size: ar.Length()}
}

// Empty returns true for an unused slot.
func (r Region) Empty() bool {
	return r.Size == 0
}

// End returns the inclusive last address of r. r must not be empty.
func (r Region) End() uint64 {
	return r.Base + r.Size - 1
}

// Limit returns the exclusive end of r.
func (r Region) Limit() uint64 {
	return r.Base + r.Size
}

// Range returns r as a hostarch.AddrRange.
func (r Region) Range() hostarch.AddrRange {
	return hostarch.AddrRange{Start: hostarch.Addr(r.Base), End: hostarch.Addr(r.Limit())}
}

// Contains returns true if addr lies within r.
func (r Region) Contains(addr uint64) bool {
	return r.Range().Contains(hostarch.Addr(addr))
}

// String implements fmt.Stringer.String.
func (r Region) String() string {
	return r.Range().String()
}
