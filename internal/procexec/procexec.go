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

// Package procexec is the one place FALCON-Z spawns external
// collaborator processes. Every invocation is argv-typed rather than a
// shell string — paths are never interpolated into a shell.
package procexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/golang/glog"
)

// Result is the outcome of one child-process invocation.
type Result struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Failed reports whether the child exited non-zero.
func (r Result) Failed() bool { return r.ExitCode != 0 }

// StderrTail returns at most n lines from the end of Stderr, for
// compact per-frame failure reports.
func (r Result) StderrTail(n int) string {
	lines := strings.Split(strings.TrimRight(r.Stderr, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Run spawns argv[0] with argv[1:], waits for completion, and captures
// stdout/stderr separately. It never touches a shell.
func Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("procexec: empty argv")
	}

	glog.V(1).Infof("procexec: exec %s", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Argv:   argv,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	res.ExitCode = exitCode(err)

	if res.Failed() {
		glog.Warningf("procexec: %s exited %d: %s", argv[0], res.ExitCode, res.StderrTail(5))
	}

	// Only propagate errors that mean the process never ran at all
	// (binary missing, permission denied); a non-zero exit is carried
	// in Result.ExitCode and is the caller's decision, not ours.
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return res, nil
		}
		return res, fmt.Errorf("procexec: failed to start %s: %w", argv[0], err)
	}
	return res, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus()
		}
		return 1
	}
	return -1
}
