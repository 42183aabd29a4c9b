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

// Package ingest normalizes heterogeneous input (a DICOM series, one or
// more compressed volume files, or a single 4-D volume) into the
// canonical vol_0000.ext... sequence.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/falconz/falconz/internal/procexec"
)

// ImageHandle carries the minimal shape/spacing/dtype description of a
// volume: one explicit value, with an open/close lifecycle, instead of
// a library-specific object threaded everywhere. Heavy operations
// (split, mean intensity, merge) are thin wrappers over the external
// image tool; ImageHandle itself never loads voxel data into process
// memory.
type ImageHandle struct {
	Path    string
	Shape   []int     // voxel grid, e.g. [x, y, z] or [x, y, z, t]
	Spacing []float64 // mm per voxel, parallel to Shape
	Dtype   string

	imageTool string
}

// Open queries the image tool for a volume's shape/spacing/dtype. The
// handle holds no OS resource (the image tool is a one-shot subprocess
// per query) but exposes Close for symmetry with its open/close
// contract, and so callers can defer Close() uniformly regardless of
// what a future in-process decoder might need to release.
func Open(ctx context.Context, imageTool, path string) (*ImageHandle, error) {
	res, err := procexec.Run(ctx, []string{imageTool, path, "-info"})
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, fmt.Errorf("ingest: %s -info %s exited %d: %s", imageTool, path, res.ExitCode, res.StderrTail(5))
	}
	shape, spacing, dtype, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing image info for %s: %w", path, err)
	}
	return &ImageHandle{Path: path, Shape: shape, Spacing: spacing, Dtype: dtype, imageTool: imageTool}, nil
}

// Close releases the handle. A no-op today; kept so ImageHandle's
// lifecycle doesn't have to change if a future revision memory-maps
// voxel data directly.
func (h *ImageHandle) Close() error { return nil }

// Is4D reports whether the volume carries a non-trivial time dimension.
func (h *ImageHandle) Is4D() bool {
	dims := nonSingletonDims(h.Shape)
	return len(dims) == 4
}

// TimePoints returns the size of the time dimension, or 1 for a 3-D
// volume.
func (h *ImageHandle) TimePoints() int {
	dims := nonSingletonDims(h.Shape)
	if len(dims) < 4 {
		return 1
	}
	return dims[3]
}

// nonSingletonDims squeezes trivially-1 singleton dimensions.
func nonSingletonDims(shape []int) []int {
	var out []int
	for _, d := range shape {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

// parseInfo parses the image tool's "-info" text output. The expected
// format is one key per line: "shape=X,Y,Z,T", "spacing=sx,sy,sz,st",
// "dtype=float32"; this is the one plausible line-oriented format
// assumed for the image tool's otherwise-unspecified reporting.
func parseInfo(stdout string) (shape []int, spacing []float64, dtype string, err error) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "shape="):
			shape, err = parseIntList(strings.TrimPrefix(line, "shape="))
			if err != nil {
				return nil, nil, "", err
			}
		case strings.HasPrefix(line, "spacing="):
			spacing, err = parseFloatList(strings.TrimPrefix(line, "spacing="))
			if err != nil {
				return nil, nil, "", err
			}
		case strings.HasPrefix(line, "dtype="):
			dtype = strings.TrimPrefix(line, "dtype=")
		}
	}
	if shape == nil {
		return nil, nil, "", fmt.Errorf("no shape= line in image tool output")
	}
	return shape, spacing, dtype, nil
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
