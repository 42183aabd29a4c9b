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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/falconz/falconz/internal/errs"
)

// StudySession owns the working directory layout for one run. It is
// created once by the driver and removed only by the user, never by
// FALCON-Z itself.
type StudySession struct {
	WorkingDir    string
	SplitDir      string // Split-Nifti-files/
	NCCDir        string // ncc-images/
	MocoDir       string // Motion-corrected-images/
	TransformsDir string // transforms/
}

// NewStudySession creates the working directory as a sibling of
// inputDir, named FALCONZ-V02-<yyyy-MM-dd-HH-mm-ss>, plus its split,
// moco and transforms subdirectories. NCCDir is not created here; it
// is created only when the start-frame selector runs.
func NewStudySession(inputDir string, now time.Time) (StudySession, error) {
	parent := filepath.Dir(filepath.Clean(inputDir))
	name := fmt.Sprintf("FALCONZ-V02-%s", now.Format("2006-01-02-15-04-05"))
	working := filepath.Join(parent, name)

	s := StudySession{
		WorkingDir:    working,
		SplitDir:      filepath.Join(working, "Split-Nifti-files"),
		NCCDir:        filepath.Join(working, "ncc-images"),
		MocoDir:       filepath.Join(working, "Motion-corrected-images"),
		TransformsDir: filepath.Join(working, "transforms"),
	}
	for _, d := range []string{s.WorkingDir, s.SplitDir, s.MocoDir, s.TransformsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return StudySession{}, errs.Wrap(errs.Platform, err)
		}
	}
	return s, nil
}
