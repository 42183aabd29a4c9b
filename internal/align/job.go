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
	"path/filepath"
	"strings"

	"github.com/falconz/falconz/internal/frames"
)

// Job is one registration job: a fixed/moving pair to align under a
// given Paradigm with a given multi-resolution schedule.
type Job struct {
	Fixed      frames.Frame
	Moving     frames.Frame
	Paradigm   Paradigm
	Iterations string // multi-resolution schedule, e.g. "100x25x10"
}

// TransformArtifact is the paradigm-specific set of transform files a
// job produces.
type TransformArtifact struct {
	AffineMat    string // always present
	Warp         string // deformable only
	InverseWarp  string // deformable only
}

// Files returns the non-empty paths in the artifact, in the order the
// paradigm produces them.
func (t TransformArtifact) Files() []string {
	out := []string{t.AffineMat}
	if t.Warp != "" {
		out = append(out, t.Warp, t.InverseWarp)
	}
	return out
}

// stem strips the volumetric extension(s) from a frame's filename,
// e.g. "vol_0003.nii.gz" -> "vol_0003".
func stem(name string) string {
	for _, ext := range []string{".nii.gz", ".nii", ".nrrd", ".mha", ".mhd", ".hdr", ".img"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ArtifactPaths computes the paths the job's transform artifact will be
// written to, rooted at dir (the split/working directory, prior to
// assembly's move into transforms/).
func (j Job) ArtifactPaths(dir string) TransformArtifact {
	s := stem(j.Moving.Name())
	switch j.Paradigm {
	case Rigid:
		return TransformArtifact{AffineMat: filepath.Join(dir, s+"_rigid.mat")}
	case Affine:
		return TransformArtifact{AffineMat: filepath.Join(dir, s+"_affine.mat")}
	case Deformable:
		return TransformArtifact{
			AffineMat:   filepath.Join(dir, s+"_affine.mat"),
			Warp:        filepath.Join(dir, s+"_warp.nii.gz"),
			InverseWarp: filepath.Join(dir, s+"_inverse_warp.nii.gz"),
		}
	default:
		return TransformArtifact{}
	}
}

// ResampledPath computes the moco_<name> path for the job's moving frame.
func (j Job) ResampledPath(mocoDir string) string {
	return filepath.Join(mocoDir, "moco_"+j.Moving.Name())
}

// buildRegisterArgv builds the argv for the registration invocation.
// For Deformable it returns two argvs: the affine step (run first and
// reused as initialization) and the deformable step.
func buildRegisterArgv(enginePath string, j Job, artifact TransformArtifact) [][]string {
	base := []string{
		enginePath,
		"-d", "3",
		"-i", j.Fixed.Path, j.Moving.Path,
		"-m", "NCC", "2x2x2",
		"-ia-image-centers",
		"-n", j.Iterations,
	}

	switch j.Paradigm {
	case Rigid:
		argv := append(append([]string{}, base...), "-dof", "6", "-o", artifact.AffineMat)
		return [][]string{argv}
	case Affine:
		argv := append(append([]string{}, base...), "-dof", "12", "-o", artifact.AffineMat)
		return [][]string{argv}
	case Deformable:
		affineArgv := append(append([]string{}, base...), "-dof", "12", "-o", artifact.AffineMat)
		deformArgv := []string{
			enginePath,
			"-d", "3",
			"-i", j.Fixed.Path, j.Moving.Path,
			"-m", "NCC", "2x2x2",
			"-it", artifact.AffineMat,
			"-n", j.Iterations,
			"-o", artifact.Warp,
			"-oinv", artifact.InverseWarp,
		}
		return [][]string{affineArgv, deformArgv}
	default:
		return nil
	}
}

// buildResampleArgv builds the argv for the resample invocation.
// Deformable resample composes transforms as warp then affine on the
// command line (see DESIGN.md for why this order was chosen and how to
// flip it).
func buildResampleArgv(enginePath string, j Job, artifact TransformArtifact, outPath string) []string {
	argv := []string{
		enginePath,
		"-d", "3",
		"-rf", j.Fixed.Path,
		"-rm", j.Moving.Path, outPath,
		"-ri", "LINEAR",
	}
	switch j.Paradigm {
	case Rigid, Affine:
		argv = append(argv, "-r", artifact.AffineMat)
	case Deformable:
		argv = append(argv, "-r", artifact.Warp, artifact.AffineMat)
	}
	return argv
}
