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

// Package pipeline is the single driver that sequences every pipeline
// stage: it owns the StudySession working directory, validates the CLI
// configuration, and returns every failure as a categorized error whose
// Category the caller maps onto a process exit code. One function
// resolves configuration, runs a
// fixed stage sequence, and carries it to completion.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/falconz/falconz/internal/align"
)

// AutoStartFrame is the sentinel value of --start-frame requesting the
// automatic selector instead of an explicit index.
const AutoStartFrame = "auto"

// DashIterations is the "fast" preset --mode dash substitutes for
// --multi-resolution-iterations.
const DashIterations = "100x25x10x0"

// DefaultIterations is the cruise-mode default iteration schedule.
const DefaultIterations = "100x25x10"

// Mode is the CLI's --mode value.
type Mode string

const (
	Cruise Mode = "cruise"
	Dash   Mode = "dash"
)

// Config is the validated form of the CLI surface.
type Config struct {
	Directory                 string
	ReferenceFrameIndex       int    // -1 means "last"
	StartFrame                string // "auto" or a base-10 integer
	Registration              align.Paradigm
	MultiResolutionIterations string
	Mode                      Mode

	// BinariesDir is where the external collaborators already live.
	// Binary-download bootstrap is an out-of-scope collaborator;
	// resolved from --binaries-dir, defaulting to "./falconz-bin"; no
	// environment variable is consulted.
	BinariesDir string

	PoolCOverride int // test hook: force Pool-C size instead of probing CPUs
	PoolEOverride int
	PoolFOverride int
}

// ParseConfig validates raw CLI flag values into a Config.
func ParseConfig(directory string, referenceFrameIndex int, startFrame, registration, iterations, mode, binariesDir string) (Config, error) {
	if directory == "" {
		return Config{}, fmt.Errorf("pipeline: --directory is required")
	}
	if binariesDir == "" {
		binariesDir = "./falconz-bin"
	}
	paradigm, err := align.ParseParadigm(registration)
	if err != nil {
		return Config{}, err
	}
	m := Mode(mode)
	if m != Cruise && m != Dash {
		return Config{}, fmt.Errorf("pipeline: unknown --mode %q (want cruise or dash)", mode)
	}
	if iterations == "" {
		iterations = DefaultIterations
	}
	if m == Dash {
		iterations = DashIterations
	}
	if !validIterationsSchedule(iterations) {
		return Config{}, fmt.Errorf("pipeline: --multi-resolution-iterations must be an 'x'-separated numeric string, got %q", iterations)
	}
	if startFrame == "" {
		startFrame = AutoStartFrame
	}

	return Config{
		Directory:                 directory,
		ReferenceFrameIndex:       referenceFrameIndex,
		StartFrame:                startFrame,
		Registration:              paradigm,
		MultiResolutionIterations: iterations,
		Mode:                      m,
		BinariesDir:               binariesDir,
	}, nil
}

// validIterationsSchedule reports whether s is a non-empty 'x'-separated
// sequence of digit runs (e.g. "100x25x10"), the only shape the external
// image tool's multi-resolution flag accepts.
func validIterationsSchedule(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, "x") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
