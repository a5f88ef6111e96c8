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

// Binary memblock loads boot memory maps into a region table and reports on
// them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/memblock/pkg/log"
)

var (
	debug           = flag.Bool("debug", false, "enable debug logging, same as -log-level=debug.")
	logLevel        = flag.String("log-level", "info", "minimum level logged: warning, info, or debug.")
	logFormat       = flag.String("log-format", "text", "log format: text (default), json, or json-k8s.")
	logFile         = flag.String("log", "", "file path where logs are written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	alsoLogToStderr = flag.Bool("alsologtostderr", false, "send log messages to stderr as well as to -log.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&dumpCmd{out: os.Stdout}, "")
	subcommands.Register(&replayCmd{out: os.Stdout}, "")
	subcommands.Register(&queryCmd{out: os.Stdout}, "")
	subcommands.Register(&allocCmd{out: os.Stdout}, "")
	flag.Parse()

	if err := setupLogging(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}

func setupLogging(command string) error {
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	if *debug {
		level = log.Debug
	}

	var file io.Writer
	if *logFile != "" {
		f, err := log.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, newFileOpts(command))
		if err != nil {
			return err
		}
		file = f
	}
	e, err := newTarget(*logFormat, file, os.Stderr, *alsoLogToStderr)
	if err != nil {
		return err
	}
	log.SetTarget(e)
	log.SetLevel(level)
	return nil
}
