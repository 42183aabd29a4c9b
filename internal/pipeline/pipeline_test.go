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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/falconz/falconz/internal/errs"
)

// fakeTool is a stand-in for both the registration engine and the image
// tool: it materializes whatever output path follows "-o", and whatever
// path follows a moving volume argument to "-rm" (the resample case,
// where the output isn't the argument immediately after the flag),
// succeeding unconditionally. Driving a real subprocess rather than
// mocking one exercises the actual argv-building and exit-code paths.
const fakeTool = `#!/bin/sh
prev1=""
prev2=""
for a in "$@"; do
  if [ "$prev2" = "-rm" ]; then
    echo "resampled" > "$a"
  fi
  if [ "$prev1" = "-o" ]; then
    echo "output" > "$a"
  fi
  prev2="$prev1"
  prev1="$a"
done
exit 0
`

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestRunTwoFrameSequenceAssemblesSuccessfully(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeExecutable(t, filepath.Join(binDir, "greedy"), fakeTool)
	writeExecutable(t, filepath.Join(binDir, "c3d"), fakeTool)

	inputDir := filepath.Join(root, "input")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inputDir, "a.nii.gz"), []byte("frame-a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inputDir, "b.nii.gz"), []byte("frame-b"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseConfig(inputDir, -1, "0", "rigid", "", "cruise", binDir)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	result, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", result.FrameCount)
	}
	if result.ReferenceIndex != 1 {
		t.Errorf("ReferenceIndex = %d, want 1 (last frame, default --reference-frame-index -1)", result.ReferenceIndex)
	}
	if _, err := os.Stat(result.MergedPath); err != nil {
		t.Errorf("expected merged output at %s: %v", result.MergedPath, err)
	}
	if _, err := os.Stat(filepath.Join(result.Session.TransformsDir, "vol_0000_rigid.mat")); err != nil {
		t.Errorf("expected transform artifact in transforms dir: %v", err)
	}
}

func TestRunFailsWithIngestionCategoryOnEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	os.MkdirAll(binDir, 0o755)
	inputDir := filepath.Join(root, "input")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseConfig(inputDir, -1, "0", "rigid", "", "cruise", binDir)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	_, err = Run(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected an Ingestion error for an empty input directory")
	}
	if cat, ok := errs.CategoryOf(err); !ok || cat != errs.Ingestion {
		t.Errorf("expected Ingestion category, got %v %v", cat, ok)
	}
}

func TestParseConfigRejectsUnknownParadigm(t *testing.T) {
	_, err := ParseConfig("/tmp/in", -1, "auto", "bogus", "", "cruise", "")
	if err == nil {
		t.Fatal("expected an error for an unknown --registration value")
	}
}

func TestParseConfigDashModeOverridesExplicitIterations(t *testing.T) {
	cfg, err := ParseConfig("/tmp/in", -1, "auto", "deformable", "999x1", "dash", "")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.MultiResolutionIterations != DashIterations {
		t.Errorf("MultiResolutionIterations = %q, want %q", cfg.MultiResolutionIterations, DashIterations)
	}
}
