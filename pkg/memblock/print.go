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
	"io"
	"strings"
)

// WriteTo writes one line per region, "[0xBASE-0xEND], size: 0xSIZE" with an
// inclusive end, followed by a "used: N/CAPACITY" summary line. It implements
// io.WriterTo.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, d := range t.regions[:t.n] {
		n, err := fmt.Fprintf(w, "[%#x-%#x], size: %#x\n", d.Base, d.End(), d.Size)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := fmt.Fprintf(w, "used: %d/%d\n", t.n, len(t.regions))
	return total + int64(n), err
}

// String implements fmt.Stringer.String.
func (t *Table) String() string {
	var b strings.Builder
	t.WriteTo(&b)
	return b.String()
}
