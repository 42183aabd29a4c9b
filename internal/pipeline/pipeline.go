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

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/align"
	"github.com/falconz/falconz/internal/assemble"
	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/frames"
	"github.com/falconz/falconz/internal/ingest"
	"github.com/falconz/falconz/internal/logging"
	"github.com/falconz/falconz/internal/platform"
	"github.com/falconz/falconz/internal/reporter"
	"github.com/falconz/falconz/internal/resources"
	"github.com/falconz/falconz/internal/startframe"
)

// Result summarizes one completed (or partially completed) run.
type Result struct {
	Session        StudySession
	ReferenceIndex int
	StartIndex     int
	FrameCount     int
	MergedPath     string
	Failures       []align.Failure
}

// Run sequences every pipeline stage over cfg. It is the one function
// that knows the full pipeline order; every component it calls is
// otherwise ignorant of its neighbors: resolve flags, probe the
// platform, ingest, select a start frame, align, assemble, and
// translate the outcome into a process exit code (left to the caller
// here, via the returned error's Category).
func Run(ctx context.Context, cfg Config, rep reporter.Reporter) (Result, error) {
	if rep == nil {
		rep = reporter.NoOp{}
	}
	now := time.Now()

	glog.V(2).Infof("pipeline: resolving study session for %s", cfg.Directory)
	session, err := NewStudySession(cfg.Directory, now)
	if err != nil {
		return Result{}, err
	}

	runLog, err := logging.Open(session.WorkingDir, now)
	if err != nil {
		return Result{}, errs.Wrap(errs.Platform, err)
	}
	defer runLog.Close()
	runLog.Info("starting run: directory=%s registration=%s mode=%s iterations=%s",
		cfg.Directory, cfg.Registration, cfg.Mode, cfg.MultiResolutionIterations)

	plat, err := platform.Probe(cfg.BinariesDir)
	if err != nil {
		runLog.Error("platform probe failed: %v", err)
		return Result{}, errs.Wrap(errs.Platform, err)
	}
	for name, version := range platform.ProbeVersions(ctx, plat.Binaries, nil) {
		runLog.Info("collaborator %s: %s", name, version)
	}

	poolC, poolE, poolF := resources.SchedulerDegree()
	if cfg.PoolCOverride > 0 {
		poolC = cfg.PoolCOverride
	}
	if cfg.PoolEOverride > 0 {
		poolE = cfg.PoolEOverride
	}
	if cfg.PoolFOverride > 0 {
		poolF = cfg.PoolFOverride
	}

	estimate, err := resources.EstimateParallelJobs(cfg.Registration, nil)
	if err != nil {
		runLog.Error("resource preflight failed: %v", err)
		return Result{}, errs.Wrap(errs.Platform, err)
	}
	if estimate.Clamped {
		runLog.Warn("resource preflight over-subscribed to 1 job (mem=%.1fGB threads=%d)", estimate.AvailMemGB, estimate.AvailThreads)
	}
	alignPoolSize := poolF
	if estimate.NumJobs < alignPoolSize {
		alignPoolSize = estimate.NumJobs
	}
	runLog.Info("pool sizes: ingest=%d selection=%d alignment=%d (resource preflight suggested %d)", poolC, poolE, poolF, estimate.NumJobs)

	if err := ingest.Normalize(ctx, ingest.Options{
		InputDir: cfg.Directory,
		SplitDir: session.SplitDir,
		Binaries: plat.Binaries,
		PoolSize: poolC,
	}); err != nil {
		runLog.Error("ingestion failed: %v", err)
		return Result{}, err
	}

	seq, err := loadSequence(session.SplitDir)
	if err != nil {
		runLog.Error("%v", err)
		return Result{}, errs.Wrap(errs.Ingestion, err)
	}
	runLog.Info("ingested %d frames", seq.Len())

	referenceIndex, err := frames.ResolveReferenceIndex(seq, cfg.ReferenceFrameIndex)
	if err != nil {
		return Result{}, errs.Wrap(errs.Config, err)
	}

	startIndex, err := resolveStartIndex(ctx, cfg, seq, referenceIndex, plat, poolE, session, rep, runLog)
	if err != nil {
		return Result{}, err
	}

	selection := frames.ReferenceSelection{ReferenceIndex: referenceIndex, StartIndex: startIndex}
	if err := selection.Validate(seq); err != nil {
		return Result{}, errs.Wrap(errs.Config, err)
	}
	runLog.Info("reference index=%d start index=%d", referenceIndex, startIndex)

	moving := frames.AlignedSet(seq, referenceIndex, startIndex)
	scheduler := align.Scheduler{
		EnginePath: plat.Binaries.RegistrationEngine,
		SplitDir:   session.SplitDir,
		MocoDir:    session.MocoDir,
		PoolSize:   alignPoolSize,
		Reporter:   rep,
	}
	outcome, err := scheduler.Run(ctx, seq.Frames[referenceIndex], moving, cfg.Registration, cfg.MultiResolutionIterations)
	if err != nil {
		runLog.Error("alignment scheduler failed fatally: %v", err)
		return Result{}, errs.Wrap(errs.Alignment, err)
	}
	for _, f := range outcome.Failures {
		runLog.Warn("frame %s failed at %s step (exit %d): %s", f.Frame.Name(), f.Step, f.ExitCode, f.StderrTail)
	}

	merged, err := assemble.Assemble(ctx, assemble.Options{
		Sequence:        seq,
		ReferenceIndex:  referenceIndex,
		StartIndex:      startIndex,
		Paradigm:        cfg.Registration,
		SplitDir:        session.SplitDir,
		MocoDir:         session.MocoDir,
		TransformsDir:   session.TransformsDir,
		ImageTool:       plat.Binaries.ImageTool,
		Artifacts:       outcome.Artifacts,
		ExpectedMissing: len(outcome.Failures),
	})
	if err != nil {
		runLog.Error("assembly failed: %v", err)
		return Result{}, err
	}

	result := Result{
		Session:        session,
		ReferenceIndex: referenceIndex,
		StartIndex:     startIndex,
		FrameCount:     merged.FrameCount,
		MergedPath:     merged.MergedPath,
		Failures:       outcome.Failures,
	}

	if len(outcome.Failures) > 0 {
		runLog.Warn("merged %s with %d missing frame(s): alignment failures present", merged.MergedPath, len(outcome.Failures))
		return result, errs.Wrapf(errs.Alignment, "%d frame(s) failed registration/resample; %s assembled with missing time points", len(outcome.Failures), merged.MergedPath)
	}

	runLog.Info("completed: %s (%d frames)", merged.MergedPath, merged.FrameCount)
	return result, nil
}

// resolveStartIndex implements the §4.E decision: an explicit index is
// used as-is; "auto" invokes the selector, except the §8 boundary case
// of exactly 2 frames where the selector is never invoked.
func resolveStartIndex(ctx context.Context, cfg Config, seq frames.Sequence, referenceIndex int, plat platform.Platform, poolE int, session StudySession, rep reporter.Reporter, runLog *logging.Log) (int, error) {
	if cfg.StartFrame != AutoStartFrame {
		idx, err := strconv.Atoi(cfg.StartFrame)
		if err != nil {
			return 0, errs.Wrapf(errs.Config, "invalid --start-frame %q: %v", cfg.StartFrame, err)
		}
		return idx, nil
	}

	if seq.Len() == 2 {
		// Index 0 as start always yields an empty non-moco set and a
		// single aligned frame, regardless of which of the two frames is
		// the reference.
		runLog.Info("exactly 2 frames: selector not invoked, aligning the single non-reference frame")
		return 0, nil
	}

	if err := os.MkdirAll(session.NCCDir, 0o755); err != nil {
		return 0, errs.Wrap(errs.Selection, err)
	}
	selector := startframe.Selector{
		ImageTool:  plat.Binaries.ImageTool,
		ScratchDir: session.NCCDir,
		PoolSize:   poolE,
	}
	idx, err := selector.Select(ctx, seq, referenceIndex)
	if err != nil {
		runLog.Error("start-frame selection failed: %v", err)
		return 0, err
	}
	runLog.Info("auto-selected start index %d", idx)
	return idx, nil
}

// loadSequence builds a frames.Sequence from every canonical vol_NNNN.ext
// file directly under dir.
func loadSequence(dir string) (frames.Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return frames.Sequence{}, fmt.Errorf("pipeline: reading %q: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return frames.NewSequence(paths)
}
