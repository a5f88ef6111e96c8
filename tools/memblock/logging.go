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
	"fmt"
	"io"
	"strings"
	"time"

	"gvisor.dev/memblock/pkg/log"
)

func newEmitter(format string, logFile io.Writer) (log.Emitter, error) {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}, nil
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}, nil
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: logFile}}, nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", format)
}

// newTarget returns the emitter for all logs. file is nil when no -log was
// given, in which case logs go to stderr alone.
func newTarget(format string, file, stderr io.Writer, alsoToStderr bool) (log.Emitter, error) {
	writers := []io.Writer{stderr}
	if file != nil {
		writers = []io.Writer{file}
		if alsoToStderr {
			writers = append(writers, stderr)
		}
	}
	var emitters log.MultiEmitter
	for _, w := range writers {
		e, err := newEmitter(format, w)
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, e)
	}
	if len(emitters) == 1 {
		return emitters[0], nil
	}
	return &emitters, nil
}

// fileOpts expands the variables of a -log pattern.
type fileOpts struct {
	command   string
	timestamp time.Time
}

func newFileOpts(command string) fileOpts {
	return fileOpts{command: command, timestamp: time.Now()}
}

// Build implements log.FileOpts.Build.
func (o fileOpts) Build(logPattern string) string {
	logPattern = strings.ReplaceAll(logPattern, "%TIMESTAMP%", fmt.Sprintf("%d", o.timestamp.UnixNano()))
	return strings.ReplaceAll(logPattern, "%COMMAND%", o.command)
}
