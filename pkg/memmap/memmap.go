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

// Package memmap describes a boot memory map in a TOML or YAML file and
// applies it to a memblock.Memblock.
//
// A map lists the memory present, the ranges reserved out of it and an
// optional script of operations to replay afterwards:
//
//	memory_capacity = 16
//
//	[[memory]]
//	name = "low"
//	base = 0
//	size = "640K"
//
//	[[reserved]]
//	name = "bios data"
//	base = 0
//	size = "4K"
//
//	[[ops]]
//	op = "alloc"
//	size = "2M"
//	align = "2M"
//	direction = "top-down"
package memmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gvisor.dev/memblock/pkg/log"
	"gvisor.dev/memblock/pkg/memblock"
)

// Format is the encoding of a map file.
type Format string

const (
	// FormatTOML is decoded with github.com/BurntSushi/toml.
	FormatTOML Format = "toml"

	// FormatYAML is decoded with gopkg.in/yaml.v3.
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the format implied by path's extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown memory map extension %q, want .toml, .yaml or .yml", ext)
	}
}

// Range is a named [Base, Base+Size) range.
type Range struct {
	// Name is free-form and only used in messages.
	Name string   `toml:"name" yaml:"name"`
	Base Quantity `toml:"base" yaml:"base"`
	Size Quantity `toml:"size" yaml:"size"`
}

// String implements fmt.Stringer.String.
func (r Range) String() string {
	if r.Name == "" {
		return fmt.Sprintf("[%v, +%v)", r.Base, r.Size)
	}
	return fmt.Sprintf("%s [%v, +%v)", r.Name, r.Base, r.Size)
}

// Map is the contents of a map file.
type Map struct {
	// MemoryCapacity and ReservedCapacity size the two tables. Zero means
	// memblock.DefaultCapacity.
	MemoryCapacity   int `toml:"memory_capacity" yaml:"memory_capacity"`
	ReservedCapacity int `toml:"reserved_capacity" yaml:"reserved_capacity"`

	Memory   []Range `toml:"memory" yaml:"memory"`
	Reserved []Range `toml:"reserved" yaml:"reserved"`
	Ops      []Op    `toml:"ops" yaml:"ops"`
}

// Load reads the map file at path, choosing the decoder from its extension.
func Load(path string) (*Map, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("Loaded memory map %q: %d memory ranges, %d reserved ranges, %d ops", path, len(m.Memory), len(m.Reserved), len(m.Ops))
	return m, nil
}

// Decode decodes and validates a map. Unknown keys are errors.
func Decode(r io.Reader, format Format) (*Map, error) {
	var m Map
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&m)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %q", undecoded)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown memory map format %q", format)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the parts of the map that do not depend on applying it.
func (m *Map) Validate() error {
	if m.MemoryCapacity < 0 || m.ReservedCapacity < 0 {
		return fmt.Errorf("negative table capacity")
	}
	for i, r := range m.Memory {
		if r.Size == 0 {
			return fmt.Errorf("memory[%d] %v: zero size", i, r)
		}
	}
	for i, r := range m.Reserved {
		if r.Size == 0 {
			return fmt.Errorf("reserved[%d] %v: zero size", i, r)
		}
	}
	for i := range m.Ops {
		if err := m.Ops[i].validate(); err != nil {
			return fmt.Errorf("ops[%d]: %w", i, err)
		}
	}
	return nil
}

// Build returns a Memblock holding the map's memory and reserved ranges. The
// ops are not applied.
func (m *Map) Build() (*memblock.Memblock, error) {
	memCap, resCap := m.MemoryCapacity, m.ReservedCapacity
	if memCap == 0 {
		memCap = memblock.DefaultCapacity
	}
	if resCap == 0 {
		resCap = memblock.DefaultCapacity
	}
	mb := memblock.New(memCap, resCap)
	for i, r := range m.Memory {
		if err := mb.AddMemory(uint64(r.Base), uint64(r.Size)); err != nil {
			return nil, fmt.Errorf("memory[%d] %v: %w", i, r, err)
		}
	}
	for i, r := range m.Reserved {
		if err := mb.Reserve(uint64(r.Base), uint64(r.Size)); err != nil {
			return nil, fmt.Errorf("reserved[%d] %v: %w", i, r, err)
		}
	}
	return mb, nil
}
