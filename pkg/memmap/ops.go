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
	"fmt"

	"gvisor.dev/memblock/pkg/log"
	"gvisor.dev/memblock/pkg/memblock"
)

// Op kinds.
const (
	OpAddMemory    = "add-memory"
	OpRemoveMemory = "remove-memory"
	OpReserve      = "reserve"
	OpFree         = "free"
	OpAlloc        = "alloc"
)

// Op is one step of a replay script.
type Op struct {
	Op   string   `toml:"op" yaml:"op"`
	Base Quantity `toml:"base" yaml:"base"`
	Size Quantity `toml:"size" yaml:"size"`

	// Align and Direction are only used by alloc. Direction is "bottom-up"
	// (the default) or "top-down".
	Align     Quantity `toml:"align" yaml:"align"`
	Direction string   `toml:"direction" yaml:"direction"`
}

// String implements fmt.Stringer.String.
func (o Op) String() string {
	if o.Op == OpAlloc {
		return fmt.Sprintf("%s %v align %v %s", o.Op, o.Size, o.Align, o.direction())
	}
	return fmt.Sprintf("%s [%v, +%v)", o.Op, o.Base, o.Size)
}

func (o Op) validate() error {
	switch o.Op {
	case OpAddMemory, OpRemoveMemory, OpReserve, OpFree, OpAlloc:
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	if o.Size == 0 {
		return fmt.Errorf("%s: zero size", o.Op)
	}
	if o.Op != OpAlloc && (o.Align != 0 || o.Direction != "") {
		return fmt.Errorf("%s: align and direction only apply to %s", o.Op, OpAlloc)
	}
	if _, err := ParseDirection(o.Direction); err != nil {
		return err
	}
	return nil
}

func (o Op) direction() memblock.Direction {
	d, _ := ParseDirection(o.Direction)
	return d
}

// ParseDirection parses an alloc direction. The empty string is BottomUp.
func ParseDirection(s string) (memblock.Direction, error) {
	switch s {
	case "", "bottom-up":
		return memblock.BottomUp, nil
	case "top-down":
		return memblock.TopDown, nil
	default:
		return 0, fmt.Errorf("unknown direction %q, want bottom-up or top-down", s)
	}
}

// Apply performs o on mb. For alloc it returns the allocated base; otherwise
// it returns o.Base.
func (o Op) Apply(mb *memblock.Memblock) (uint64, error) {
	base, size := uint64(o.Base), uint64(o.Size)
	var err error
	switch o.Op {
	case OpAddMemory:
		err = mb.AddMemory(base, size)
	case OpRemoveMemory:
		err = mb.RemoveMemory(base, size)
	case OpReserve:
		err = mb.Reserve(base, size)
	case OpFree:
		err = mb.Free(base, size)
	case OpAlloc:
		base, err = mb.Alloc(size, uint64(o.Align), o.direction())
	default:
		err = fmt.Errorf("unknown op %q", o.Op)
	}
	return base, err
}

// Result is the outcome of one replayed Op.
type Result struct {
	Op   Op
	Base uint64
	Err  error
}

// Replay applies m.Ops to mb in order. It stops at the first failing op
// unless keepGoing is set; the returned error is the first failure.
func (m *Map) Replay(mb *memblock.Memblock, keepGoing bool) ([]Result, error) {
	results := make([]Result, 0, len(m.Ops))
	var firstErr error
	for i, op := range m.Ops {
		base, err := op.Apply(mb)
		results = append(results, Result{Op: op, Base: base, Err: err})
		if err != nil {
			log.Warningf("Replay: ops[%d] %v failed: %v", i, op, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("ops[%d] %v: %w", i, op, err)
			}
			if !keepGoing {
				break
			}
			continue
		}
		log.Debugf("Replay: ops[%d] %v at %#x", i, op, base)
	}
	return results, firstErr
}
