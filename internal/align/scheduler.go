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
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/frames"
	"github.com/falconz/falconz/internal/procexec"
	"github.com/falconz/falconz/internal/reporter"
	"github.com/falconz/falconz/internal/sched"
)

// Failure records one frame whose registration or resample step exited
// non-zero.
type Failure struct {
	Frame      frames.Frame
	Step       string // "register" or "resample"
	ExitCode   int
	StderrTail string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s step exited %d: %s", f.Frame.Name(), f.Step, f.ExitCode, f.StderrTail)
}

// Scheduler runs RegistrationJobs in parallel over a bounded worker pool.
type Scheduler struct {
	EnginePath string
	SplitDir   string // jobs write transform artifacts here, pre-move
	MocoDir    string // jobs write resampled frames here
	PoolSize   int
	Reporter   reporter.Reporter

	// Runner defaults to procexec.Run; overridable so tests can stub
	// out the external registration engine.
	Runner func(ctx context.Context, argv []string) (procexec.Result, error)
}

func (s Scheduler) runner() func(context.Context, []string) (procexec.Result, error) {
	if s.Runner != nil {
		return s.Runner
	}
	return procexec.Run
}

// Outcome is the result of running the full moving set through the
// scheduler.
type Outcome struct {
	Artifacts map[string]TransformArtifact // keyed by moving-frame name
	Failures  []Failure
}

// Run registers and resamples every frame in moving against fixed,
// returning per-frame outcomes. A non-zero exit on either step is
// recorded and does not stop sibling jobs; only a fatal
// error (context cancellation, e.g. a missing binary detected upstream)
// aborts outstanding jobs, and already-produced ResampledFrames are
// preserved (nothing here deletes a partial output).
func (s Scheduler) Run(ctx context.Context, fixed frames.Frame, moving []frames.Frame, paradigm Paradigm, iterations string) (Outcome, error) {
	rep := s.Reporter
	if rep == nil {
		rep = reporter.NoOp{}
	}
	total := len(moving)
	rep.Start(total)

	type jobResult struct {
		name     string
		artifact TransformArtifact
		failure  *Failure
	}

	var done int32 // jobs finished so far, for the progress counter
	results, errs := sched.MapBounded(ctx, s.PoolSize, moving, func(ctx context.Context, mv frames.Frame, idx int) (jobResult, error) {
		job := Job{Fixed: fixed, Moving: mv, Paradigm: paradigm, Iterations: iterations}
		artifact := job.ArtifactPaths(s.SplitDir)

		for _, argv := range buildRegisterArgv(s.EnginePath, job, artifact) {
			res, err := s.runner()(ctx, argv)
			if err != nil {
				return jobResult{}, err
			}
			if res.Failed() {
				rep.Progress(int(atomic.AddInt32(&done, 1)), total)
				return jobResult{name: mv.Name(), failure: &Failure{
					Frame: mv, Step: "register", ExitCode: res.ExitCode, StderrTail: res.StderrTail(10),
				}}, nil
			}
		}

		outPath := job.ResampledPath(s.MocoDir)
		resampleArgv := buildResampleArgv(s.EnginePath, job, artifact, outPath)
		res, err := s.runner()(ctx, resampleArgv)
		if err != nil {
			return jobResult{}, err
		}
		rep.Progress(int(atomic.AddInt32(&done, 1)), total)
		if res.Failed() {
			return jobResult{name: mv.Name(), failure: &Failure{
				Frame: mv, Step: "resample", ExitCode: res.ExitCode, StderrTail: res.StderrTail(10),
			}}, nil
		}
		return jobResult{name: mv.Name(), artifact: artifact}, nil
	})

	if err := sched.FirstError(errs); err != nil {
		rep.Done()
		return Outcome{}, fmt.Errorf("align: fatal scheduler error: %w", err)
	}

	out := Outcome{Artifacts: make(map[string]TransformArtifact)}
	for _, r := range results {
		if r.failure != nil {
			out.Failures = append(out.Failures, *r.failure)
			glog.Warningf("align: frame %s failed at %s step", r.failure.Frame.Name(), r.failure.Step)
			continue
		}
		out.Artifacts[r.name] = r.artifact
	}
	rep.Done()
	return out, nil
}
