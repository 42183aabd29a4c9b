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

// Package startframe implements the automatic start-frame selector: a
// voxelwise NCC sweep across candidate frames followed by a threshold
// scan. Called only when the caller did not supply an explicit start
// frame.
package startframe

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/frames"
	"github.com/falconz/falconz/internal/procexec"
	"github.com/falconz/falconz/internal/sched"
)

// DefaultThreshold is τ, the fraction of the top-candidate anchor score
// a frame must clear to be selected. Exposed as a field rather than
// baked into the algorithm so a future re-tune doesn't require touching
// the selector.
const DefaultThreshold = 0.5

// Selector computes the earliest reliably-registerable start index.
type Selector struct {
	ImageTool  string
	ScratchDir string // ncc-images/ working directory
	PoolSize   int     // selection pool degree: ceil(cpu_count/2)
	Threshold  float64 // τ; zero means DefaultThreshold

	// Runner defaults to procexec.Run; overridable so tests can stub
	// out the external image tool.
	Runner func(ctx context.Context, argv []string) (procexec.Result, error)
}

func (s Selector) runner() func(context.Context, []string) (procexec.Result, error) {
	if s.Runner != nil {
		return s.Runner
	}
	return procexec.Run
}

func (s Selector) threshold() float64 {
	if s.Threshold == 0 {
		return DefaultThreshold
	}
	return s.Threshold
}

// Select returns the index (in the full original sequence) of the
// earliest candidate frame reliably registerable to reference. The
// returned index is ALWAYS into the full seq — never into a
// moving-set-only slice — so every caller shares one contract.
func (s Selector) Select(ctx context.Context, seq frames.Sequence, referenceIndex int) (int, error) {
	candidates := frames.MovingSet(seq, referenceIndex)
	if len(candidates) == 0 {
		return 0, errs.Wrapf(errs.Selection, "no candidate frames to evaluate")
	}

	reference := seq.Frames[referenceIndex]
	poolSize := s.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}

	scores, errors := sched.MapBounded(ctx, poolSize, candidates, func(ctx context.Context, c frames.Frame, _ int) (float64, error) {
		return s.meanNCC(ctx, reference, c)
	})
	// A single candidate's NCC failure is fatal to the whole selector;
	// partial completion is not accepted.
	if err := sched.FirstError(errors); err != nil {
		return 0, errs.Wrapf(errs.Selection, "NCC computation failed: %v", err)
	}

	anchor := topKMean(scores, 3)
	tau := s.threshold()
	for i, c := range candidates {
		if scores[i] > tau*anchor {
			glog.V(1).Infof("startframe: selected frame %d (score=%.4f anchor=%.4f tau=%.2f)", c.Index, scores[i], anchor, tau)
			return c.Index, nil
		}
	}

	// Unreachable in theory (the top-scoring candidate itself must
	// satisfy the inequality); guard against a rounding edge by
	// falling back to the highest-scoring candidate.
	best := 0
	for i := range scores {
		if scores[i] > scores[best] {
			best = i
		}
	}
	glog.Warningf("startframe: threshold scan found nothing, falling back to highest-scoring candidate %d", candidates[best].Index)
	return candidates[best].Index, nil
}

// topKMean is the arithmetic mean of the top k values in scores, or the
// plain max when fewer than k scores are available — averaging whatever
// is left would only pull the anchor down and make the threshold easier
// to clear than the single-candidate case warrants.
func topKMean(scores []float64, k int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) < k {
		return sorted[0]
	}
	var sum float64
	for i := 0; i < k; i++ {
		sum += sorted[i]
	}
	return sum / float64(k)
}

// meanNCC computes the mean intensity of the voxelwise NCC image between
// reference and candidate (4x4x4 radius, negative correlations clipped
// to zero) via the image tool's -ncc <radius>/-clip 0 inf invocation.
func (s Selector) meanNCC(ctx context.Context, reference, candidate frames.Frame) (float64, error) {
	out := filepath.Join(s.ScratchDir, fmt.Sprintf("ncc_%s", candidate.Name()))
	argv := []string{
		s.ImageTool,
		reference.Path, candidate.Path,
		"-ncc", "4x4x4",
		"-clip", "0", "inf",
		"-o", out,
	}
	res, err := s.runner()(ctx, argv)
	if err != nil {
		return 0, err
	}
	if res.Failed() {
		return 0, fmt.Errorf("NCC computation for %s exited %d: %s", candidate.Name(), res.ExitCode, res.StderrTail(5))
	}

	meanArgv := []string{s.ImageTool, out, "-mean"}
	meanRes, err := s.runner()(ctx, meanArgv)
	if err != nil {
		return 0, err
	}
	if meanRes.Failed() {
		return 0, fmt.Errorf("mean-intensity query for %s exited %d: %s", out, meanRes.ExitCode, meanRes.StderrTail(5))
	}
	var mean float64
	if _, err := fmt.Sscanf(meanRes.Stdout, "mean=%g", &mean); err != nil {
		return 0, fmt.Errorf("parsing mean-intensity output for %s: %w", out, err)
	}
	return mean, nil
}
