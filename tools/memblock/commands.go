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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/memblock/pkg/hostarch"
	"gvisor.dev/memblock/pkg/memblock"
	"gvisor.dev/memblock/pkg/memmap"
)

// loadMemblock loads the map at path and builds its tables.
func loadMemblock(path string) (*memmap.Map, *memblock.Memblock, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	m, err := memmap.Load(path)
	if err != nil {
		return nil, nil, err
	}
	mb, err := m.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, mb, nil
}

func printSummary(w io.Writer, mb *memblock.Memblock) {
	fmt.Fprint(w, mb)
	fmt.Fprintf(w, "total: %#x, reserved: %#x, free: %#x\n", mb.PhysMemSize(), mb.ReservedSize(), mb.FreeSize())
}

type dumpCmd struct {
	out    io.Writer
	config string
	free   bool
}

// Name implements subcommands.Command.Name.
func (*dumpCmd) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*dumpCmd) Synopsis() string {
	return "print the tables built from a memory map"
}

// Usage implements subcommands.Command.Usage.
func (*dumpCmd) Usage() string {
	return `dump --config <file> - print the tables built from a memory map
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to a .toml or .yaml memory map")
	f.BoolVar(&c.free, "free", false, "also list free ranges")
}

// Execute implements subcommands.Command.Execute.
func (c *dumpCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}
	_, mb, err := loadMemblock(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	printSummary(c.out, mb)
	if c.free {
		fmt.Fprintln(c.out, "free:")
		mb.ForEachFree(func(r memblock.Region) bool {
			fmt.Fprintf(c.out, "[%#x-%#x], size: %#x\n", r.Base, r.End(), r.Size)
			return true
		})
	}
	return subcommands.ExitSuccess
}

type replayCmd struct {
	out       io.Writer
	config    string
	keepGoing bool
}

// Name implements subcommands.Command.Name.
func (*replayCmd) Name() string {
	return "replay"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*replayCmd) Synopsis() string {
	return "apply the ops of a memory map and print the result"
}

// Usage implements subcommands.Command.Usage.
func (*replayCmd) Usage() string {
	return `replay --config <file> [--keep-going] - apply the ops of a memory map and print the result
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *replayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to a .toml or .yaml memory map")
	f.BoolVar(&c.keepGoing, "keep-going", false, "continue after a failing op")
}

// Execute implements subcommands.Command.Execute.
func (c *replayCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}
	m, mb, err := loadMemblock(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	results, replayErr := m.Replay(mb, c.keepGoing)
	for i, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(c.out, "ops[%d] %v: %v\n", i, r.Op, r.Err)
		case r.Op.Op == memmap.OpAlloc:
			fmt.Fprintf(c.out, "ops[%d] %v: %#x\n", i, r.Op, r.Base)
		default:
			fmt.Fprintf(c.out, "ops[%d] %v: ok\n", i, r.Op)
		}
	}
	printSummary(c.out, mb)
	if replayErr != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type queryCmd struct {
	out    io.Writer
	config string
}

// Name implements subcommands.Command.Name.
func (*queryCmd) Name() string {
	return "query"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*queryCmd) Synopsis() string {
	return "report whether a range is memory and whether it is reserved, before and after the map's ops"
}

// Usage implements subcommands.Command.Usage.
func (*queryCmd) Usage() string {
	return `query --config <file> <base> <size> - report whether a range is memory and whether it is reserved
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *queryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to a .toml or .yaml memory map")
}

// Execute implements subcommands.Command.Execute.
func (c *queryCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	base, err := memmap.ParseQuantity(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "base: %v\n", err)
		return subcommands.ExitUsageError
	}
	size, err := memmap.ParseQuantity(f.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "size: %v\n", err)
		return subcommands.ExitUsageError
	}
	m, mb, err := loadMemblock(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	// Ops run on a copy so the map as loaded can be reported too.
	replayed := mb.Clone()
	if _, err := m.Replay(replayed, true); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
	}
	b, s := uint64(base), uint64(size)
	for _, q := range []struct {
		name string
		mb   *memblock.Memblock
	}{{"loaded", mb}, {"replayed", replayed}} {
		fmt.Fprintf(c.out, "%s [%#x, +%#x): memory: %t, intersects memory: %t, reserved: %t, within reservation: %t\n",
			q.name, b, s, q.mb.Memory.IsSubarea(b, s), q.mb.Memory.IsIntersecting(b, s), q.mb.IsReserved(b, s), q.mb.Reserved.IsSubarea(b, s))
	}
	return subcommands.ExitSuccess
}

type allocCmd struct {
	out     io.Writer
	config  string
	size    string
	align   string
	topDown bool
}

// Name implements subcommands.Command.Name.
func (*allocCmd) Name() string {
	return "alloc"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*allocCmd) Synopsis() string {
	return "allocate a range from a memory map"
}

// Usage implements subcommands.Command.Usage.
func (*allocCmd) Usage() string {
	return `alloc --config <file> --size <n> [--align <n>] [--top-down] - allocate a range from a memory map
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *allocCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to a .toml or .yaml memory map")
	f.StringVar(&c.size, "size", "", "number of bytes to allocate, e.g. 0x1000 or 2M")
	f.StringVar(&c.align, "align", "", "alignment of the allocation, default is the host page size")
	f.BoolVar(&c.topDown, "top-down", false, "allocate the highest fitting range")
}

// Execute implements subcommands.Command.Execute.
func (c *allocCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}
	size, err := memmap.ParseQuantity(c.size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--size: %v\n", err)
		return subcommands.ExitUsageError
	}
	align := memmap.Quantity(hostarch.HostPageSize())
	if c.align != "" {
		if align, err = memmap.ParseQuantity(c.align); err != nil {
			fmt.Fprintf(os.Stderr, "--align: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	dir := memblock.BottomUp
	if c.topDown {
		dir = memblock.TopDown
	}
	m, mb, err := loadMemblock(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if _, err := m.Replay(mb, false); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return subcommands.ExitFailure
	}
	base, err := mb.Alloc(uint64(size), uint64(align), dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.out, "%#x\n", base)
	printSummary(c.out, mb)
	return subcommands.ExitSuccess
}
