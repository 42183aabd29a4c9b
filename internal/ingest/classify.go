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
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
)

// recognizedExtensions is the volumetric extension table ingest accepts.
// ".hdr"/".img" are an Analyze pair; only the ".hdr" member carries the
// header the image tool needs.
var recognizedExtensions = []string{".nii.gz", ".nii", ".hdr", ".img", ".nrrd", ".mha", ".mhd"}

// canonicalExtension is the one extension the ingest normalizer emits.
const canonicalExtension = ".nii.gz"

// RecognizedExtension returns the matched extension (possibly
// multi-part, e.g. ".nii.gz") and true if name carries a recognized
// volumetric extension.
func RecognizedExtension(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range recognizedExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext, true
		}
	}
	return "", false
}

// IsCanonical reports whether name already carries the canonical
// extension and therefore only needs a copy, not a conversion.
func IsCanonical(name string) bool {
	ext, ok := RecognizedExtension(name)
	return ok && ext == canonicalExtension
}

// LooksLikeDICOM reports whether path parses as a DICOM file, using
// suyashkumar/dicom instead of shelling out to the converter just to
// classify a file.
func LooksLikeDICOM(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() < 132 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = dicom.NewParser(f, info.Size(), nil, dicom.SkipPixelData())
	return err == nil
}

// DirectoryHasDICOM reports whether any top-level file in dir looks like
// DICOM.
func DirectoryHasDICOM(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if LooksLikeDICOM(filepath.Join(dir, e.Name())) {
			return true, nil
		}
	}
	return false, nil
}
