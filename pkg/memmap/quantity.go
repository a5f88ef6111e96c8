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
	"math/bits"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Quantity is an address or byte count. In map files it may be written as an
// integer or as a string with a 0x/0o/0b prefix and an optional binary K, M,
// G or T suffix, e.g. "0x9fc00", "640K" or "4G".
type Quantity uint64

var suffixShift = map[byte]uint{
	'K': 10,
	'M': 20,
	'G': 30,
	'T': 40,
}

// ParseQuantity parses s as described for Quantity.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	var shift uint
	if sh, ok := suffixShift[strings.ToUpper(s[len(s)-1:])[0]]; ok {
		shift = sh
		s = strings.TrimSpace(s[:len(s)-1])
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if shift != 0 && bits.LeadingZeros64(v) < int(shift) {
		return 0, fmt.Errorf("quantity %q overflows", s)
	}
	return Quantity(v << shift), nil
}

// String implements fmt.Stringer.String.
func (q Quantity) String() string {
	return fmt.Sprintf("%#x", uint64(q))
}

// UnmarshalTOML implements toml.Unmarshaler.
func (q *Quantity) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative quantity %d", v)
		}
		*q = Quantity(v)
		return nil
	case string:
		p, err := ParseQuantity(v)
		if err != nil {
			return err
		}
		*q = p
		return nil
	default:
		return fmt.Errorf("quantity must be an integer or string, got %T", v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: quantity must be a scalar", node.Line)
	}
	p, err := ParseQuantity(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*q = p
	return nil
}
