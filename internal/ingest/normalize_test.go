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
	"os"
	"path/filepath"
	"testing"

	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/platform"
)

// writeFakeImageTool writes a shell script standing in for the c3d-like
// image tool: "-info" reports the given shape, any other invocation
// just materializes an empty output file at the path following "-o".
func writeFakeImageTool(t *testing.T, dir, shape string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-c3d.sh")
	script := fmt.Sprintf(`#!/bin/sh
for a in "$@"; do
  if [ "$a" = "-info" ]; then
    echo "shape=%s"
    echo "spacing=2.0,2.0,2.0,1.0"
    echo "dtype=float32"
    exit 0
  fi
done
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then
    echo "volume-data" > "$a"
  fi
  prev="$a"
done
exit 0
`, shape)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFakeConverter(t *testing.T, dir string, outputs []string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-converter.sh")
	var body string
	for _, o := range outputs {
		body += fmt.Sprintf("echo converted > \"$OUTDIR/%s\"\n", o)
	}
	script := fmt.Sprintf(`#!/bin/sh
prev=""
OUTDIR=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then
    OUTDIR="$a"
  fi
  prev="$a"
done
%s
exit 0
`, body)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNormalizeSingleFile4DSplits(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "in")
	splitDir := filepath.Join(root, "split")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	volPath := filepath.Join(inputDir, "scan.nii.gz")
	if err := os.WriteFile(volPath, []byte("4d-volume"), 0o644); err != nil {
		t.Fatal(err)
	}

	imageTool := writeFakeImageTool(t, root, "4,4,4,3")
	opt := Options{
		InputDir: inputDir,
		SplitDir: splitDir,
		Binaries: platform.Binaries{ImageTool: imageTool},
		PoolSize: 2,
	}
	if err := Normalize(context.Background(), opt); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	for i := 0; i < 3; i++ {
		p := filepath.Join(splitDir, fmt.Sprintf("vol_%04d.nii.gz", i))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestNormalizeSingleFile3DFails(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "in")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	volPath := filepath.Join(inputDir, "scan.nii.gz")
	if err := os.WriteFile(volPath, []byte("3d-volume"), 0o644); err != nil {
		t.Fatal(err)
	}

	imageTool := writeFakeImageTool(t, root, "4,4,4")
	opt := Options{
		InputDir: inputDir,
		SplitDir: filepath.Join(root, "split"),
		Binaries: platform.Binaries{ImageTool: imageTool},
		PoolSize: 1,
	}
	err := Normalize(context.Background(), opt)
	if err == nil {
		t.Fatal("expected InsufficientInput-style error for a sole 3-D volume")
	}
	if cat, ok := errs.CategoryOf(err); !ok || cat != errs.Ingestion {
		t.Errorf("expected Ingestion category, got %v %v", cat, ok)
	}
}

func TestNormalizeMultipleFilesOrdersByOriginalName(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "in")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.nii.gz", "a.nii.gz", "c.nrrd"} {
		if err := os.WriteFile(filepath.Join(inputDir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	imageTool := writeFakeImageTool(t, root, "4,4,4")
	opt := Options{
		InputDir: inputDir,
		SplitDir: filepath.Join(root, "split"),
		Binaries: platform.Binaries{ImageTool: imageTool},
		PoolSize: 3,
	}
	if err := Normalize(context.Background(), opt); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// a.nii.gz < b.nii.gz < c.nrrd lexicographically. The two canonical
	// files are copied byte-for-byte; c.nrrd goes through the fake image
	// tool, which writes "volume-data".
	want := []string{"a.nii.gz", "b.nii.gz", "volume-data\n"}
	for i, w := range want {
		p := filepath.Join(opt.SplitDir, fmt.Sprintf("vol_%04d.nii.gz", i))
		got, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("expected %s: %v", p, err)
			continue
		}
		if string(got) != w {
			t.Errorf("%s = %q, want %q", p, got, w)
		}
	}
}

func TestNormalizeDICOMDropsSidecarsAndHandlesMultipleOutputs(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "in")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	converter := writeFakeConverter(t, root, []string{"a.nii.gz", "b.nii.gz", "a.json"})
	imageTool := writeFakeImageTool(t, root, "4,4,4")

	opt := Options{
		InputDir: inputDir,
		SplitDir: filepath.Join(root, "split"),
		Binaries: platform.Binaries{ImageTool: imageTool, DICOMConverter: converter},
		PoolSize: 2,
	}
	if err := normalizeDICOM(context.Background(), opt); err != nil {
		t.Fatalf("normalizeDICOM: %v", err)
	}
	for i := 0; i < 2; i++ {
		p := filepath.Join(opt.SplitDir, fmt.Sprintf("vol_%04d.nii.gz", i))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
}
