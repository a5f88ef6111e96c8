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

	"gvisor.dev/memblock/pkg/log"
)

// DefaultCapacity is the number of slots used when no capacity is given.
const DefaultCapacity = 60

// Table is a fixed-capacity, ordered set of disjoint regions.
//
// Slots [0, n) hold regions sorted strictly ascending by Base, no two of which
// overlap or touch. Slots [n, len(regions)) are zero. The slot array is
// allocated by NewTable and never grows.
//
// Table is not safe for concurrent use. Mutations move several slots and an
// unsynchronized reader may observe a table that violates the above.
type Table struct {
	// regions has length equal to the table's capacity.
	regions []Region

	// n is the number of occupied slots.
	n int
}

// NewTable returns an empty table with the given number of slots. It panics
// if capacity is not positive.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid region table capacity %d", capacity))
	}
	return &Table{regions: make([]Region, capacity)}
}

// Size returns the number of occupied slots.
func (t *Table) Size() int {
	return t.n
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return len(t.regions)
}

// Full returns true if every slot is occupied.
func (t *Table) Full() bool {
	return t.n == len(t.regions)
}

// Add adds [base, base+size) to the table, coalescing it with every region it
// overlaps or touches.
//
// A new slot is only needed when the range adjoins no existing region; if the
// table is full in that case Add returns ErrCapacityExceeded and the table is
// unchanged.
func (t *Table) Add(base, size uint64) error {
	r, err := makeRegion(base, size)
	if err != nil {
		return fmt.Errorf("adding region: %w", err)
	}

	idx := t.search(base)
	switch {
	case idx > 0 && t.regions[idx-1].Range().Adjoins(r.Range()):
		idx--
		t.regions[idx] = regionOf(t.regions[idx].Range().Union(r.Range()))
	case idx < t.n && t.regions[idx].Range().Adjoins(r.Range()):
		t.regions[idx] = regionOf(t.regions[idx].Range().Union(r.Range()))
	default:
		if err := t.insert(idx, r); err != nil {
			return fmt.Errorf("adding region %v: %w", r, err)
		}
	}
	t.merge(idx)

	if log.IsLogging(log.Debug) {
		log.Debugf("Region table: added %v, %d/%d slots used", r, t.n, len(t.regions))
	}
	return nil
}

// Remove removes [base, base+size) from the single region that contains it,
// shrinking, splitting or deleting that region.
//
// Remove returns ErrRangeNotTracked if no region contains the whole range, and
// ErrCapacityExceeded if the region must be split and the table is full. In
// both cases the table is unchanged.
func (t *Table) Remove(base, size uint64) error {
	r, err := makeRegion(base, size)
	if err != nil {
		return fmt.Errorf("removing region: %w", err)
	}

	idx, ok := t.containing(r)
	if !ok {
		return fmt.Errorf("removing region %v: %w", r, ErrRangeNotTracked)
	}

	d := t.regions[idx]
	switch {
	case d == r:
		t.shiftLeft(idx)
	case d.Base == r.Base:
		t.regions[idx] = Region{Base: r.Limit(), Size: d.Size - r.Size}
	case d.Limit() == r.Limit():
		t.regions[idx].Size -= r.Size
	default:
		if t.Full() {
			return fmt.Errorf("removing region %v splits %v: %w", r, d, ErrCapacityExceeded)
		}
		t.regions[idx] = Region{Base: d.Base, Size: r.Base - d.Base}
		tail := Region{Base: r.Limit(), Size: d.Limit() - r.Limit()}
		if err := t.insert(idx+1, tail); err != nil {
			// Checked above.
			panic(fmt.Sprintf("inserting split tail %v: %v", tail, err))
		}
	}

	if log.IsLogging(log.Debug) {
		log.Debugf("Region table: removed %v from %v, %d/%d slots used", r, d, t.n, len(t.regions))
	}
	return nil
}

// IsIntersecting returns true if [base, base+size) overlaps any region.
func (t *Table) IsIntersecting(base, size uint64) bool {
	r, err := makeRegion(base, size)
	if err != nil || t.n == 0 || r.Limit() <= t.regions[0].Base {
		return false
	}
	ar := r.Range()
	for _, d := range t.regions[:t.n] {
		if d.Base >= r.Limit() {
			break
		}
		if d.Range().Overlaps(ar) {
			return true
		}
	}
	return false
}

// IsSubarea returns true if [base, base+size) lies entirely within a single
// region.
func (t *Table) IsSubarea(base, size uint64) bool {
	r, err := makeRegion(base, size)
	if err != nil {
		return false
	}
	_, ok := t.containing(r)
	return ok
}

// Find returns the region containing addr.
func (t *Table) Find(addr uint64) (Region, bool) {
	for _, d := range t.regions[:t.n] {
		if d.Base > addr {
			break
		}
		if d.Contains(addr) {
			return d, true
		}
	}
	return Region{}, false
}

// ForEach calls fn for each region in ascending order until fn returns false.
func (t *Table) ForEach(fn func(Region) bool) {
	for _, d := range t.regions[:t.n] {
		if !fn(d) {
			return
		}
	}
}

// Regions returns a copy of the occupied slots.
func (t *Table) Regions() []Region {
	return append([]Region(nil), t.regions[:t.n]...)
}

// TotalSize returns the sum of the sizes of all regions.
func (t *Table) TotalSize() uint64 {
	var total uint64
	for _, d := range t.regions[:t.n] {
		total += d.Size
	}
	return total
}

// Reset empties the table.
func (t *Table) Reset() {
	clear(t.regions[:t.n])
	t.n = 0
}

// Clone returns a deep copy of t with the same capacity.
func (t *Table) Clone() *Table {
	c := NewTable(len(t.regions))
	copy(c.regions, t.regions[:t.n])
	c.n = t.n
	return c
}

// CheckInvariants returns an *InvariantError describing the first slot that
// breaks the table's ordering, disjointness or prefix invariants.
func (t *Table) CheckInvariants() error {
	if t.n < 0 || t.n > len(t.regions) {
		return &InvariantError{Index: t.n, Reason: fmt.Sprintf("occupied count %d outside [0, %d]", t.n, len(t.regions))}
	}
	for i, d := range t.regions[:t.n] {
		if _, err := makeRegion(d.Base, d.Size); err != nil {
			return &InvariantError{Index: i, Reason: fmt.Sprintf("occupied slot holds %v", err)}
		}
		if i == 0 {
			continue
		}
		if prev := t.regions[i-1]; prev.Limit() >= d.Base {
			return &InvariantError{Index: i, Reason: fmt.Sprintf("%v is not separated from previous %v", d, prev)}
		}
	}
	for i := t.n; i < len(t.regions); i++ {
		if !t.regions[i].Empty() {
			return &InvariantError{Index: i, Reason: fmt.Sprintf("unused slot holds %v", t.regions[i])}
		}
	}
	return nil
}

// search returns the index of the first occupied slot whose Base is >= base,
// or t.n if there is none.
func (t *Table) search(base uint64) int {
	for i, d := range t.regions[:t.n] {
		if d.Base >= base {
			return i
		}
	}
	return t.n
}

// containing returns the index of the region that is a superset of r.
func (t *Table) containing(r Region) (int, bool) {
	ar := r.Range()
	for i, d := range t.regions[:t.n] {
		if d.Base > r.Base {
			break
		}
		if d.Range().IsSupersetOf(ar) {
			return i, true
		}
	}
	return 0, false
}

// merge coalesces slot idx with the slots after it for as long as they
// overlap or touch.
func (t *Table) merge(idx int) {
	for idx+1 < t.n {
		cur, next := &t.regions[idx], t.regions[idx+1]
		if cur.Base > next.Base {
			panic(&InvariantError{Index: idx + 1, Reason: fmt.Sprintf("%v sorts before %v", next, *cur)})
		}
		if cur.Limit() < next.Base {
			return
		}
		if l := next.Limit(); l > cur.Limit() {
			cur.Size = l - cur.Base
		}
		t.shiftLeft(idx + 1)
	}
}

// insert stores r in slot idx, moving occupied slots at and after idx right
// if necessary.
func (t *Table) insert(idx int, r Region) error {
	if idx < t.n {
		if err := t.shiftRight(idx); err != nil {
			return err
		}
		t.regions[idx] = r
		return nil
	}
	if t.Full() {
		return ErrCapacityExceeded
	}
	t.regions[idx] = r
	t.n++
	return nil
}

// shiftRight moves occupied slots [idx, n) one slot towards the tail and
// zeroes slot idx. The caller must fill slot idx.
func (t *Table) shiftRight(idx int) error {
	if t.Full() {
		return ErrCapacityExceeded
	}
	copy(t.regions[idx+1:t.n+1], t.regions[idx:t.n])
	t.regions[idx] = Region{}
	t.n++
	return nil
}

// shiftLeft overwrites slot idx with the slots after it and zeroes the
// vacated tail slot.
func (t *Table) shiftLeft(idx int) {
	copy(t.regions[idx:t.n-1], t.regions[idx+1:t.n])
	t.n--
	t.regions[t.n] = Region{}
}
