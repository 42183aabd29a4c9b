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

// Package reporter isolates progress output behind an interface with a
// no-op implementation for test runs: progress reporting is purely
// observational and must never influence control flow, so it is a
// swappable interface rather than a package-level flag check.
package reporter

import (
	"fmt"
	"runtime"
	"time"
)

// Reporter receives purely informational progress events. Nothing in
// FALCON-Z branches on what a Reporter does with them.
type Reporter interface {
	Start(total int)
	Progress(done, total int)
	Done()
}

// NoOp discards every event. Used by tests and any caller that doesn't
// want terminal output.
type NoOp struct{}

func (NoOp) Start(int)         {}
func (NoOp) Progress(int, int) {}
func (NoOp) Done()             {}

// Console prints a "[done/total]" counter with the current goroutine
// count and elapsed time to stdout. It reports no CPU or RAM
// utilization.
type Console struct {
	Label string
	start time.Time
}

func (c *Console) Start(total int) {
	c.start = time.Now()
	fmt.Printf("%s: starting %d job(s)\n", c.Label, total)
}

func (c *Console) Progress(done, total int) {
	elapsed := time.Since(c.start).Round(time.Second)
	fmt.Printf("%s: [%d/%d] goroutines=%d elapsed=%s\n", c.Label, done, total, runtime.NumGoroutine(), elapsed)
}

func (c *Console) Done() {
	fmt.Printf("%s: done in %s\n", c.Label, time.Since(c.start).Round(time.Second))
}
