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
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when an operation needs a free slot in
	// a full table. It indicates a table sized too small for its workload.
	ErrCapacityExceeded = errors.New("region table capacity exceeded")

	// ErrRangeNotTracked is returned by Remove when no single region
	// contains the range being removed.
	ErrRangeNotTracked = errors.New("range not tracked")

	// ErrInvalidRange is returned for zero-length or overflowing ranges and
	// for bad allocation parameters.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvariantViolation is wrapped by InvariantError. It is never
	// returned by a mutating operation; those panic instead.
	ErrInvariantViolation = errors.New("region table invariant violated")

	// ErrNotMemory is returned when reserving a range that is not inside a
	// single memory region.
	ErrNotMemory = errors.New("range is not memory")

	// ErrReserved is returned when removing memory that is still reserved.
	ErrReserved = errors.New("range is reserved")

	// ErrNoSpace is returned by Alloc when no free range fits.
	ErrNoSpace = errors.New("no free range large enough")
)

// InvariantError describes a corrupt table.
type InvariantError struct {
	// Index is the slot at which the violation was found.
	Index int

	// Reason describes the violation.
	Reason string
}

// Error implements error.Error.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: slot %d: %s", ErrInvariantViolation, e.Index, e.Reason)
}

// Unwrap returns ErrInvariantViolation.
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}
