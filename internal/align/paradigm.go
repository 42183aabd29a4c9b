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

// Package align builds and runs the per-frame registration+resample jobs.
// Paradigm is a tagged-union constant dispatching to a single
// buildRegisterArgv/buildResampleArgv pair rather than a class hierarchy
// per registration kind.
package align

import "fmt"

// Paradigm is the registration family requested on the CLI.
type Paradigm string

const (
	Rigid      Paradigm = "rigid"
	Affine     Paradigm = "affine"
	Deformable Paradigm = "deformable"
)

// ParseParadigm validates the --registration flag value.
func ParseParadigm(s string) (Paradigm, error) {
	switch Paradigm(s) {
	case Rigid, Affine, Deformable:
		return Paradigm(s), nil
	default:
		return "", fmt.Errorf("unknown registration paradigm %q (want rigid, affine, or deformable)", s)
	}
}

func (p Paradigm) String() string { return string(p) }

// DegreesOfFreedom is the registration DoF used in the engine's -dof flag.
func (p Paradigm) DegreesOfFreedom() int {
	switch p {
	case Rigid:
		return 6
	case Affine, Deformable:
		return 12
	default:
		return 0
	}
}
