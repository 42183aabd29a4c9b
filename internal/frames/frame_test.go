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

package frames

import "testing"

func TestNewSequenceOrdersNumerically(t *testing.T) {
	paths := []string{
		"/d/vol_0010.nii.gz",
		"/d/vol_0002.nii.gz",
		"/d/vol_0001.nii.gz",
	}
	seq, err := NewSequence(paths)
	if err != nil {
		t.Fatalf("NewSequence: %v", err)
	}
	want := []string{"/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz", "/d/vol_0010.nii.gz"}
	for i, w := range want {
		if seq.Frames[i].Path != w {
			t.Errorf("frame %d = %q, want %q", i, seq.Frames[i].Path, w)
		}
		if seq.Frames[i].Index != i {
			t.Errorf("frame %d has Index %d, want %d", i, seq.Frames[i].Index, i)
		}
	}
}

func TestNewSequenceRejectsUnrecognizedNames(t *testing.T) {
	_, err := NewSequence([]string{"/d/not_a_vol.nii.gz"})
	if err == nil {
		t.Fatal("expected an error for a non-conforming filename")
	}
}

func TestResolveReferenceIndexLast(t *testing.T) {
	seq, _ := NewSequence([]string{"/d/vol_0000.nii.gz", "/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz"})
	got, err := ResolveReferenceIndex(seq, -1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestMovingSetExcludesReference(t *testing.T) {
	seq, _ := NewSequence([]string{"/d/vol_0000.nii.gz", "/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz"})
	moving := MovingSet(seq, 1)
	if len(moving) != 2 || moving[0].Index != 0 || moving[1].Index != 2 {
		t.Errorf("unexpected moving set: %+v", moving)
	}
}

func TestNonMocoAndAlignedSetsPartitionMovingSet(t *testing.T) {
	seq, _ := NewSequence([]string{
		"/d/vol_0000.nii.gz", "/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz",
		"/d/vol_0003.nii.gz", "/d/vol_0004.nii.gz",
	})
	ref, start := 4, 2
	nonMoco := NonMocoSet(seq, ref, start)
	aligned := AlignedSet(seq, ref, start)
	if len(nonMoco) != 2 || len(aligned) != 2 {
		t.Fatalf("nonMoco=%d aligned=%d, want 2 and 2", len(nonMoco), len(aligned))
	}
	if len(nonMoco)+len(aligned) != seq.Len()-1 {
		t.Errorf("partition does not cover the moving set")
	}
}

func TestValidateReferenceIsLast(t *testing.T) {
	seq, _ := NewSequence([]string{"/d/vol_0000.nii.gz", "/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz"})
	rs := ReferenceSelection{ReferenceIndex: 2, StartIndex: 0}
	if err := rs.Validate(seq); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsStartAfterReference(t *testing.T) {
	seq, _ := NewSequence([]string{"/d/vol_0000.nii.gz", "/d/vol_0001.nii.gz", "/d/vol_0002.nii.gz"})
	rs := ReferenceSelection{ReferenceIndex: 1, StartIndex: 2}
	if err := rs.Validate(seq); err == nil {
		t.Error("expected an error when start index exceeds a non-last reference index")
	}
}
