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

// Package frames models the ordered 3-D volume sequence: Frame,
// Sequence, and ReferenceSelection. A Frame is an immutable value
// created once by an upstream component and referenced, never mutated,
// by everything downstream.
package frames

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Frame is a path to a 3-D volume on disk plus its stable index in the
// owning Sequence. Immutable after construction.
type Frame struct {
	Index int    // 0-indexed position in the owning Sequence
	Path  string // absolute path to the volume file
}

// Name returns the base filename, e.g. "vol_0003.nii.gz".
func (f Frame) Name() string { return filepath.Base(f.Path) }

// Sequence is an ordered, 1-indexed-externally (but stored 0-indexed)
// list of Frames sharing one voxel grid and spacing.
type Sequence struct {
	Frames []Frame
}

// Len returns the number of frames.
func (s Sequence) Len() int { return len(s.Frames) }

// volPattern matches the canonical vol_0000.ext naming emitted by the
// ingest normalizer.
var volPattern = regexp.MustCompile(`^vol_(\d+)\.`)

// NewSequence builds a Sequence from a flat list of canonical vol_NNNN.ext
// paths, ordering them by the natural-numeric index embedded in the
// filename (not lexicographically — "vol_10" must sort after "vol_9").
// The indexer's output is deterministic given the same directory state,
// since the embedded index is the sole sort key.
func NewSequence(paths []string) (Sequence, error) {
	type indexed struct {
		idx  int
		path string
	}
	items := make([]indexed, 0, len(paths))
	for _, p := range paths {
		m := volPattern.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			return Sequence{}, fmt.Errorf("frames: %q does not match vol_NNNN.ext naming", p)
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return Sequence{}, fmt.Errorf("frames: %q has an unparseable index: %w", p, err)
		}
		items = append(items, indexed{idx: idx, path: p})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	seq := Sequence{Frames: make([]Frame, len(items))}
	for i, it := range items {
		seq.Frames[i] = Frame{Index: i, Path: it.path}
	}
	return seq, nil
}

// ReferenceSelection is the {reference_index, start_index} pair that
// fixes which frame is fixed and which leading frames (those before
// StartIndex) are passed through without motion correction.
type ReferenceSelection struct {
	ReferenceIndex int
	StartIndex     int
}

// ResolveReferenceIndex turns the CLI's --reference-frame-index value
// (-1 meaning "last") into a concrete index into seq.
func ResolveReferenceIndex(seq Sequence, requested int) (int, error) {
	if requested == -1 {
		return seq.Len() - 1, nil
	}
	if requested < 0 || requested >= seq.Len() {
		return 0, fmt.Errorf("frames: reference-frame-index %d out of range [0,%d]", requested, seq.Len()-1)
	}
	return requested, nil
}

// MovingSet returns every frame except the reference, preserving index
// order.
func MovingSet(seq Sequence, referenceIndex int) []Frame {
	moving := make([]Frame, 0, seq.Len()-1)
	for _, f := range seq.Frames {
		if f.Index != referenceIndex {
			moving = append(moving, f)
		}
	}
	return moving
}

// NonMocoSet returns every frame strictly before startIndex, excluding
// the reference.
func NonMocoSet(seq Sequence, referenceIndex, startIndex int) []Frame {
	var out []Frame
	for _, f := range seq.Frames {
		if f.Index < startIndex && f.Index != referenceIndex {
			out = append(out, f)
		}
	}
	return out
}

// AlignedSet returns the frames that must actually be registered: the
// moving set restricted to index >= startIndex.
func AlignedSet(seq Sequence, referenceIndex, startIndex int) []Frame {
	var out []Frame
	for _, f := range seq.Frames {
		if f.Index >= startIndex && f.Index != referenceIndex {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks the ReferenceSelection invariants.
func (rs ReferenceSelection) Validate(seq Sequence) error {
	n := seq.Len()
	if n < 2 {
		return fmt.Errorf("frames: sequence has %d frame(s), need >= 2", n)
	}
	if rs.ReferenceIndex < 0 || rs.ReferenceIndex >= n {
		return fmt.Errorf("frames: reference index %d out of range [0,%d]", rs.ReferenceIndex, n-1)
	}
	if rs.StartIndex < 0 || rs.StartIndex >= n {
		return fmt.Errorf("frames: start index %d out of range [0,%d]", rs.StartIndex, n-1)
	}
	if rs.ReferenceIndex == n-1 {
		// Reference is last frame: start index may be anywhere in [0, n-2].
		if rs.StartIndex > n-2 {
			return fmt.Errorf("frames: start index %d invalid when reference is last frame", rs.StartIndex)
		}
		return nil
	}
	if rs.StartIndex > rs.ReferenceIndex {
		return fmt.Errorf("frames: start index %d must be <= reference index %d", rs.StartIndex, rs.ReferenceIndex)
	}
	return nil
}
