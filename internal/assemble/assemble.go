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

// Package assemble implements the output assembler: move transform
// artifacts into transforms/, copy through the reference and non-moco
// frames, and merge every moco_* file into one 4-D artifact.
package assemble

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/align"
	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/frames"
	"github.com/falconz/falconz/internal/procexec"
)

// Options configures one assembly pass.
type Options struct {
	Sequence       frames.Sequence
	ReferenceIndex int
	StartIndex     int
	Paradigm       align.Paradigm

	SplitDir      string // where TransformArtifact files currently live
	MocoDir       string // Motion-corrected-images/
	TransformsDir string // transforms/
	ImageTool     string // for the final 4-D merge

	Artifacts map[string]align.TransformArtifact // keyed by moving-frame name, from the scheduler

	// ExpectedMissing is the number of frames the scheduler already
	// reported as failed (align.Outcome.Failures). A merge short by
	// exactly this many frames is not an Assembly failure — the
	// pipeline still surfaces it as an Alignment failure with a
	// warning, not an assembly exit code.
	ExpectedMissing int

	// Runner defaults to procexec.Run; overridable so tests can stub
	// out the external image tool's merge step.
	Runner func(ctx context.Context, argv []string) (procexec.Result, error)
}

func (o Options) runner() func(context.Context, []string) (procexec.Result, error) {
	if o.Runner != nil {
		return o.Runner
	}
	return procexec.Run
}

// Result reports what assembly produced.
type Result struct {
	MergedPath string
	FrameCount int
}

// Assemble runs the four assembly steps in order.
func Assemble(ctx context.Context, opt Options) (Result, error) {
	if err := moveTransformArtifacts(opt); err != nil {
		return Result{}, errs.Wrap(errs.Assembly, err)
	}
	if err := copyReferenceFrame(opt); err != nil {
		return Result{}, errs.Wrap(errs.Assembly, err)
	}
	if err := copyNonMocoFrames(opt); err != nil {
		return Result{}, errs.Wrap(errs.Assembly, err)
	}
	merged, err := mergeMocoFrames(ctx, opt)
	if err != nil {
		return Result{}, errs.Wrap(errs.Assembly, err)
	}

	if got, want := merged.FrameCount, opt.Sequence.Len()-opt.ExpectedMissing; got != want {
		// Invariant: len(moco_4D) == len(input_sequence), for valid
		// inputs with no alignment failures. A shortfall beyond the
		// frames the scheduler already reported as failed means assembly
		// itself lost a frame (move/copy/merge bug), which IS fatal.
		return Result{}, errs.Wrapf(errs.Assembly, "merged output has %d frames, want %d (sequence length %d minus %d known alignment failures)",
			got, want, opt.Sequence.Len(), opt.ExpectedMissing)
	}
	return merged, nil
}

// moveTransformArtifacts moves every artifact file produced by the
// scheduler from SplitDir into TransformsDir, keyed by the paradigm's
// file set.
func moveTransformArtifacts(opt Options) error {
	if err := os.MkdirAll(opt.TransformsDir, 0o755); err != nil {
		return err
	}
	for _, artifact := range opt.Artifacts {
		for _, f := range artifact.Files() {
			if f == "" {
				continue
			}
			dst := filepath.Join(opt.TransformsDir, filepath.Base(f))
			if err := os.Rename(f, dst); err != nil {
				return fmt.Errorf("moving transform artifact %q: %w", f, err)
			}
		}
	}
	return nil
}

// copyReferenceFrame copies the reference frame into the moco directory
// with a moco_ prefix so it lands at its original temporal position in
// the merge.
func copyReferenceFrame(opt Options) error {
	if err := os.MkdirAll(opt.MocoDir, 0o755); err != nil {
		return err
	}
	ref := opt.Sequence.Frames[opt.ReferenceIndex]
	dst := filepath.Join(opt.MocoDir, "moco_"+ref.Name())
	return copyFile(ref.Path, dst)
}

// copyNonMocoFrames copies every frame strictly before StartIndex
// (excluding the reference) through unchanged, renamed with a moco_
// prefix.
func copyNonMocoFrames(opt Options) error {
	for _, f := range frames.NonMocoSet(opt.Sequence, opt.ReferenceIndex, opt.StartIndex) {
		dst := filepath.Join(opt.MocoDir, "moco_"+f.Name())
		if err := copyFile(f.Path, dst); err != nil {
			return fmt.Errorf("copying non-moco frame %q: %w", f.Path, err)
		}
	}
	return nil
}

// mergeMocoFrames concatenates every moco_* file in natural-numeric
// filename order into moco_4D.ext. This ordering is the only one that
// matters across the whole pipeline — nothing upstream of this
// function guarantees job completion order.
func mergeMocoFrames(ctx context.Context, opt Options) (Result, error) {
	seq, err := mocoSequence(opt.MocoDir)
	if err != nil {
		return Result{}, err
	}
	if seq.Len() != opt.Sequence.Len() {
		glog.Warningf("assemble: merging %d moco frames but the input sequence had %d; missing time points will be absent from the merge",
			seq.Len(), opt.Sequence.Len())
	}

	out := filepath.Join(opt.MocoDir, "moco_4D.nii.gz")
	argv := []string{opt.ImageTool}
	for _, f := range seq.Frames {
		argv = append(argv, f.Path)
	}
	argv = append(argv, "-merge4d", "-o", out)

	res, err := opt.runner()(ctx, argv)
	if err != nil {
		return Result{}, err
	}
	if res.Failed() {
		return Result{}, fmt.Errorf("merging %d moco frames exited %d: %s", seq.Len(), res.ExitCode, res.StderrTail(10))
	}
	return Result{MergedPath: out, FrameCount: seq.Len()}, nil
}

// mocoSequence lists moco_vol_*.ext files in natural-numeric order,
// skipping moco_4D.ext itself if present from a prior run.
func mocoSequence(mocoDir string) (frames.Sequence, error) {
	entries, err := os.ReadDir(mocoDir)
	if err != nil {
		return frames.Sequence{}, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "moco_4D.nii.gz" {
			continue
		}
		if len(name) > 5 && name[:5] == "moco_" {
			paths = append(paths, filepath.Join(mocoDir, name[5:]))
		}
	}
	sort.Strings(paths)
	seq, err := frames.NewSequence(paths)
	if err != nil {
		return frames.Sequence{}, err
	}
	// translate back to the moco_ prefixed paths for the actual merge.
	for i := range seq.Frames {
		seq.Frames[i].Path = filepath.Join(mocoDir, "moco_"+filepath.Base(seq.Frames[i].Path))
	}
	return seq, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
