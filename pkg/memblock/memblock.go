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

// Package memblock tracks physical memory during early boot, before a page
// allocator exists.
//
// A Table is a fixed-capacity array of disjoint address ranges. Memblock pairs
// two tables, one for the memory present in the machine and one for the
// ranges reserved out of it, and hands out allocations from the difference.
// Nothing in this package allocates after construction except the
// convenience accessors that return copies.
package memblock

import (
	"fmt"
	"strings"
	"time"

	"gvisor.dev/memblock/pkg/hostarch"
	"gvisor.dev/memblock/pkg/log"
)

// Direction is the search direction used by Alloc.
type Direction int

const (
	// BottomUp returns the lowest fitting address.
	BottomUp Direction = iota

	// TopDown returns the highest fitting address.
	TopDown
)

// String implements fmt.Stringer.String.
func (d Direction) String() string {
	switch d {
	case BottomUp:
		return "bottom-up"
	case TopDown:
		return "top-down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// allocWarnings limits warnings about failed allocations, which tend to
// repeat once memory runs out.
var allocWarnings = log.BasicRateLimitedLogger(time.Second)

// Memblock tracks available memory and the reservations made out of it.
//
// Every reserved range lies within a single memory range.
type Memblock struct {
	// Memory holds the ranges of physical memory present.
	Memory *Table

	// Reserved holds the ranges of Memory that are in use.
	Reserved *Table
}

// New returns an empty Memblock whose tables have the given capacities.
func New(memoryCapacity, reservedCapacity int) *Memblock {
	return &Memblock{
		Memory:   NewTable(memoryCapacity),
		Reserved: NewTable(reservedCapacity),
	}
}

// AddMemory registers [base, base+size) as memory.
func (m *Memblock) AddMemory(base, size uint64) error {
	if err := m.Memory.Add(base, size); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	return nil
}

// RemoveMemory removes [base, base+size) from memory. The range must not be
// reserved.
func (m *Memblock) RemoveMemory(base, size uint64) error {
	if m.Reserved.IsIntersecting(base, size) {
		return fmt.Errorf("memory: removing [%#x, +%#x): %w", base, size, ErrReserved)
	}
	if err := m.Memory.Remove(base, size); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	return nil
}

// Reserve marks [base, base+size) as in use. The range must lie within a
// single memory region; reserving an already reserved range is allowed.
func (m *Memblock) Reserve(base, size uint64) error {
	if !m.Memory.IsSubarea(base, size) {
		return fmt.Errorf("reserved: adding [%#x, +%#x): %w", base, size, ErrNotMemory)
	}
	if err := m.Reserved.Add(base, size); err != nil {
		return fmt.Errorf("reserved: %w", err)
	}
	return nil
}

// Free releases a reservation, or part of one.
func (m *Memblock) Free(base, size uint64) error {
	if err := m.Reserved.Remove(base, size); err != nil {
		return fmt.Errorf("reserved: %w", err)
	}
	return nil
}

// IsMemory returns true if [base, base+size) lies within a single memory
// region.
func (m *Memblock) IsMemory(base, size uint64) bool {
	return m.Memory.IsSubarea(base, size)
}

// IsReserved returns true if any part of [base, base+size) is reserved.
func (m *Memblock) IsReserved(base, size uint64) bool {
	return m.Reserved.IsIntersecting(base, size)
}

// ForEachFree calls fn, in ascending order, for each maximal range that is
// memory but not reserved, until fn returns false.
func (m *Memblock) ForEachFree(fn func(Region) bool) {
	res := m.Reserved
	j := 0
	for _, mem := range m.Memory.regions[:m.Memory.n] {
		cur, limit := mem.Base, mem.Limit()
		for j < res.n && res.regions[j].Limit() <= cur {
			j++
		}
		for k := j; k < res.n && res.regions[k].Base < limit; k++ {
			r := res.regions[k]
			if r.Base > cur {
				if !fn(Region{Base: cur, Size: r.Base - cur}) {
					return
				}
			}
			if r.Limit() > cur {
				cur = r.Limit()
			}
		}
		if cur < limit {
			if !fn(Region{Base: cur, Size: limit - cur}) {
				return
			}
		}
	}
}

// FreeSize returns the number of bytes that are memory but not reserved.
func (m *Memblock) FreeSize() uint64 {
	var total uint64
	m.ForEachFree(func(r Region) bool {
		total += r.Size
		return true
	})
	return total
}

// Alloc finds a free range of size bytes whose base is a multiple of align,
// reserves it and returns its base. An align of 0 means hostarch.PageSize.
// dir selects the lowest or the highest such range.
func (m *Memblock) Alloc(size, align uint64, dir Direction) (uint64, error) {
	if align == 0 {
		align = hostarch.PageSize
	}
	if size == 0 || !hostarch.IsPowerOfTwo(align) {
		return 0, fmt.Errorf("allocating %#x bytes aligned to %#x: %w", size, align, ErrInvalidRange)
	}

	var (
		base  uint64
		found bool
	)
	m.ForEachFree(func(r Region) bool {
		if r.Size < size {
			return true
		}
		switch dir {
		case TopDown:
			start := hostarch.Addr(r.Limit() - size).AlignDown(align)
			if uint64(start) >= r.Base {
				// Later ranges are higher; keep looking.
				base, found = uint64(start), true
			}
			return true
		default:
			start, ok := hostarch.Addr(r.Base).AlignUp(align)
			if ok && uint64(start) <= r.Limit()-size {
				base, found = uint64(start), true
				return false
			}
			return true
		}
	})
	if !found {
		allocWarnings.Warningf("Memblock: no %s range of %#x bytes aligned to %#x, %#x bytes free", dir, size, align, m.FreeSize())
		return 0, fmt.Errorf("allocating %#x bytes aligned to %#x: %w", size, align, ErrNoSpace)
	}
	if err := m.Reserved.Add(base, size); err != nil {
		return 0, fmt.Errorf("reserved: %w", err)
	}
	log.Debugf("Memblock: allocated [%#x, +%#x) %s", base, size, dir)
	return base, nil
}

// PhysMemSize returns the total size of memory.
func (m *Memblock) PhysMemSize() uint64 {
	return m.Memory.TotalSize()
}

// ReservedSize returns the total size of reserved ranges.
func (m *Memblock) ReservedSize() uint64 {
	return m.Reserved.TotalSize()
}

// Clone returns a deep copy of m.
func (m *Memblock) Clone() *Memblock {
	return &Memblock{
		Memory:   m.Memory.Clone(),
		Reserved: m.Reserved.Clone(),
	}
}

// CheckInvariants checks both tables and that every reservation lies within
// memory.
func (m *Memblock) CheckInvariants() error {
	if err := m.Memory.CheckInvariants(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := m.Reserved.CheckInvariants(); err != nil {
		return fmt.Errorf("reserved: %w", err)
	}
	for i, r := range m.Reserved.regions[:m.Reserved.n] {
		if !m.Memory.IsSubarea(r.Base, r.Size) {
			return fmt.Errorf("reserved: %w", &InvariantError{Index: i, Reason: fmt.Sprintf("%v is not within memory", r)})
		}
	}
	return nil
}

// String implements fmt.Stringer.String.
func (m *Memblock) String() string {
	var b strings.Builder
	b.WriteString("memory:\n")
	m.Memory.WriteTo(&b)
	b.WriteString("reserved:\n")
	m.Reserved.WriteTo(&b)
	return b.String()
}
