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

package align

import (
	"context"
	"strings"
	"testing"

	"github.com/falconz/falconz/internal/frames"
	"github.com/falconz/falconz/internal/procexec"
)

func fakeSequence() (frames.Frame, []frames.Frame) {
	fixed := frames.Frame{Index: 3, Path: "/w/split/vol_0003.nii.gz"}
	moving := []frames.Frame{
		{Index: 0, Path: "/w/split/vol_0000.nii.gz"},
		{Index: 1, Path: "/w/split/vol_0001.nii.gz"},
		{Index: 2, Path: "/w/split/vol_0002.nii.gz"},
	}
	return fixed, moving
}

func TestSchedulerRunSucceedsForAllFrames(t *testing.T) {
	fixed, moving := fakeSequence()
	s := Scheduler{
		EnginePath: "/bin/greedy",
		SplitDir:   "/w/split",
		MocoDir:    "/w/moco",
		PoolSize:   2,
		Runner: func(_ context.Context, argv []string) (procexec.Result, error) {
			return procexec.Result{Argv: argv, ExitCode: 0}, nil
		},
	}
	out, err := s.Run(context.Background(), fixed, moving, Rigid, "100x25x10")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Failures) != 0 {
		t.Errorf("expected no failures, got %+v", out.Failures)
	}
	if len(out.Artifacts) != len(moving) {
		t.Errorf("got %d artifacts, want %d", len(out.Artifacts), len(moving))
	}
}

func TestSchedulerRunContinuesAfterOneFrameFails(t *testing.T) {
	fixed, moving := fakeSequence()
	s := Scheduler{
		EnginePath: "/bin/greedy",
		SplitDir:   "/w/split",
		MocoDir:    "/w/moco",
		PoolSize:   2,
		Runner: func(_ context.Context, argv []string) (procexec.Result, error) {
			for _, a := range argv {
				if strings.Contains(a, "vol_0001") {
					return procexec.Result{Argv: argv, ExitCode: 3, Stderr: "registration diverged\n"}, nil
				}
			}
			return procexec.Result{Argv: argv, ExitCode: 0}, nil
		},
	}
	out, err := s.Run(context.Background(), fixed, moving, Affine, "100x25x10")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Failures) != 1 {
		t.Fatalf("expected exactly 1 failure, got %d: %+v", len(out.Failures), out.Failures)
	}
	if out.Failures[0].Frame.Name() != "vol_0001.nii.gz" {
		t.Errorf("wrong frame failed: %+v", out.Failures[0])
	}
	if len(out.Artifacts) != len(moving)-1 {
		t.Errorf("expected the other %d frames to have succeeded, got %d artifacts", len(moving)-1, len(out.Artifacts))
	}
}

func TestSchedulerRunFatalErrorAbortsWithNoArtifacts(t *testing.T) {
	fixed, moving := fakeSequence()
	s := Scheduler{
		EnginePath: "/bin/greedy",
		SplitDir:   "/w/split",
		MocoDir:    "/w/moco",
		PoolSize:   2,
		Runner: func(_ context.Context, argv []string) (procexec.Result, error) {
			return procexec.Result{}, context.DeadlineExceeded
		},
	}
	_, err := s.Run(context.Background(), fixed, moving, Rigid, "100x25x10")
	if err == nil {
		t.Fatal("expected a fatal scheduler error")
	}
}
