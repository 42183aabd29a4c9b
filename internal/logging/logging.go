// Copyright 2026 The FalconZ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging produces the per-run structured log file that a
// run always writes: a small set of leveled helpers serializing
// through one mutex, mirrored here into a file instead of (only)
// stdout so glog's own verbose/leveled output and FALCON-Z's run log
// stay consistent.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Log is a per-run structured log sink. A Log writes to its own file
// under the study session's working directory; nothing about it is
// process-global.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates falconz-<timestamp>.log inside dir.
func Open(dir string, now time.Time) (*Log, error) {
	name := fmt.Sprintf("falconz-%s.log", now.Format("2006-01-02-15-04-05"))
	f, err := os.Create(dir + string(os.PathSeparator) + name)
	if err != nil {
		return nil, err
	}
	return &Log{file: f}, nil
}

func (l *Log) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format(time.RFC3339)
	fmt.Fprintf(l.file, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

// Info records an informational run event.
func (l *Log) Info(format string, args ...interface{}) { l.write("INFO", format, args...) }

// Warn records a non-fatal condition (e.g. a single frame's alignment
// failure, a resource over-subscription clamp).
func (l *Log) Warn(format string, args ...interface{}) { l.write("WARN", format, args...) }

// Error records a fatal condition immediately before the pipeline
// returns it to the caller.
func (l *Log) Error(format string, args ...interface{}) { l.write("ERROR", format, args...) }

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
