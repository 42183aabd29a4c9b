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

package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/platform"
	"github.com/falconz/falconz/internal/procexec"
	"github.com/falconz/falconz/internal/sched"
)

// Options configures one Normalize call.
type Options struct {
	InputDir  string
	SplitDir  string // created if absent; canonical vol_NNNN.ext land here
	Binaries  platform.Binaries
	PoolSize  int // parallel conversion degree
}

// Normalize classifies the input directory (DICOM series, single file,
// or multiple files) and produces a flat SplitDir of vol_0000.ext,
// vol_0001.ext, ..., dispatching by file classification rather than by
// a fixed file-type switch.
func Normalize(ctx context.Context, opt Options) error {
	info, err := os.Stat(opt.InputDir)
	if err != nil || !info.IsDir() {
		return errs.Wrapf(errs.Ingestion, "input directory %q does not exist", opt.InputDir)
	}
	if err := os.MkdirAll(opt.SplitDir, 0o755); err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}

	hasDICOM, err := DirectoryHasDICOM(opt.InputDir)
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}
	if hasDICOM {
		return normalizeDICOM(ctx, opt)
	}

	entries, err := os.ReadDir(opt.InputDir)
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(opt.InputDir, e.Name()))
		}
	}

	var recognized []string
	for _, f := range files {
		if _, ok := RecognizedExtension(f); ok {
			recognized = append(recognized, f)
		}
	}
	if len(recognized) == 0 {
		return errs.Wrapf(errs.Ingestion, "no recognized volumetric file or DICOM series in %q", opt.InputDir)
	}

	if len(recognized) == 1 {
		return normalizeSingleFile(ctx, opt, recognized[0])
	}
	return normalizeMultipleFiles(ctx, opt, recognized)
}

// normalizeDICOM converts a directory that contains at least one DICOM
// file, then treats the converter's output as a multiple-files (or, if
// the converter collapsed the series to one 4-D volume, single-file)
// problem.
func normalizeDICOM(ctx context.Context, opt Options) error {
	convertedDir, err := os.MkdirTemp(filepath.Dir(opt.SplitDir), "falconz-dicom-*")
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}

	argv := []string{opt.Binaries.DICOMConverter, "-z", "y", "-o", convertedDir, opt.InputDir}
	res, err := procexec.Run(ctx, argv)
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}
	if res.Failed() {
		return errs.Wrapf(errs.Ingestion, "DICOM converter exited %d: %s", res.ExitCode, res.StderrTail(10))
	}

	entries, err := os.ReadDir(convertedDir)
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}
	var produced []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		// Drop sidecar metadata (e.g. dcm2niix's .json).
		if _, ok := RecognizedExtension(e.Name()); ok {
			produced = append(produced, filepath.Join(convertedDir, e.Name()))
		} else {
			glog.V(1).Infof("ingest: dropping sidecar %s", e.Name())
		}
	}
	if len(produced) == 0 {
		return errs.Wrapf(errs.Ingestion, "DICOM converter produced no volumetric output for %q", opt.InputDir)
	}
	if len(produced) == 1 {
		return normalizeSingleFile(ctx, opt, produced[0])
	}
	return normalizeMultipleFiles(ctx, opt, produced)
}

// normalizeSingleFile handles the single-input-file branch: a lone 4-D
// volume is split, a lone 3-D volume is rejected as insufficient input.
func normalizeSingleFile(ctx context.Context, opt Options, path string) error {
	handle, err := Open(ctx, opt.Binaries.ImageTool, path)
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}
	defer handle.Close()

	if !handle.Is4D() {
		return errs.Wrapf(errs.Ingestion, "%q is a single 3-D volume; motion correction needs >= 2 frames", path)
	}
	return splitInto(ctx, opt, handle)
}

// normalizeMultipleFiles handles the "multiple recognized files" branch:
// copy files already in the canonical extension, convert the rest, in
// parallel across files.
func normalizeMultipleFiles(ctx context.Context, opt Options, files []string) error {
	poolSize := opt.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}

	tmp, err := os.MkdirTemp(filepath.Dir(opt.SplitDir), "falconz-conv-*")
	if err != nil {
		return errs.Wrap(errs.Ingestion, err)
	}

	type converted struct{ path string }
	results, errors := sched.MapBounded(ctx, poolSize, files, func(ctx context.Context, src string, idx int) (converted, error) {
		dst := filepath.Join(tmp, fmt.Sprintf("in_%04d%s", idx, canonicalExtension))
		if IsCanonical(src) {
			if err := copyFile(src, dst); err != nil {
				return converted{}, err
			}
		} else {
			argv := []string{opt.Binaries.ImageTool, src, "-o", dst}
			res, err := procexec.Run(ctx, argv)
			if err != nil {
				return converted{}, err
			}
			if res.Failed() {
				return converted{}, fmt.Errorf("converter exited %d for %s: %s", res.ExitCode, src, res.StderrTail(10))
			}
		}
		return converted{path: dst}, nil
	})
	if err := sched.FirstError(errors); err != nil {
		return errs.Wrapf(errs.Ingestion, "converting %q: %v", opt.InputDir, err)
	}

	// Lexicographic filename order mirrors acquisition order, so sort
	// by the ORIGINAL source paths, not the arbitrary tmp names just
	// assigned to survive parallel conversion.
	type pair struct{ src, dst string }
	pairs := make([]pair, len(files))
	for i := range files {
		pairs[i] = pair{src: files[i], dst: results[i].path}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].src < pairs[j].src })

	for i, p := range pairs {
		out := filepath.Join(opt.SplitDir, fmt.Sprintf("vol_%04d%s", i, canonicalExtension))
		if err := os.Rename(p.dst, out); err != nil {
			return errs.Wrap(errs.Ingestion, err)
		}
	}
	return nil
}

// splitInto splits a 4-D ImageHandle into the canonical 3-D sequence.
func splitInto(ctx context.Context, opt Options, handle *ImageHandle) error {
	t := handle.TimePoints()
	for i := 0; i < t; i++ {
		out := filepath.Join(opt.SplitDir, fmt.Sprintf("vol_%04d%s", i, canonicalExtension))
		argv := []string{opt.Binaries.ImageTool, handle.Path, "-squeeze", "-split4d", fmt.Sprintf("%d", i), "-o", out}
		res, err := procexec.Run(ctx, argv)
		if err != nil {
			return errs.Wrap(errs.Ingestion, err)
		}
		if res.Failed() {
			return errs.Wrapf(errs.Ingestion, "splitting timepoint %d of %q: exit %d: %s", i, handle.Path, res.ExitCode, res.StderrTail(10))
		}
	}
	return nil
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
