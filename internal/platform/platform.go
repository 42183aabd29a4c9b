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

// Package platform detects the running OS/architecture and resolves the
// paths of the external collaborators FALCON-Z shells out to: the
// registration engine, the image tool, and the DICOM-to-volumetric
// converter. A Platform value is constructed once by the driver and
// threaded through every other component; nothing in this module reads
// process-global state to find a binary.
package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/procexec"
)

// OS is one of the operating systems FALCON-Z supports.
type OS string

// Arch is one of the CPU architectures FALCON-Z supports.
type Arch string

const (
	Linux   OS = "linux"
	Mac     OS = "mac"
	Windows OS = "windows"

	X86_64 Arch = "x86_64"
	Arm64  Arch = "arm64"
)

// UnsupportedPlatformError is returned when the host OS/arch tuple falls
// outside the enumerated supported set.
type UnsupportedPlatformError struct {
	GOOS, GOARCH string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: GOOS=%s GOARCH=%s", e.GOOS, e.GOARCH)
}

// Binaries holds the absolute paths of the external executables FALCON-Z
// collaborates with.
type Binaries struct {
	RegistrationEngine string // the "greedy-like" image-registration binary
	ImageTool          string // the "c3d-like" image-arithmetic binary
	DICOMConverter     string // DICOM-to-volumetric converter
}

// Platform is the immutable description of the host this invocation is
// running on, plus the resolved paths of its collaborators.
type Platform struct {
	OS       OS
	Arch     Arch
	Binaries Binaries
}

// Probe detects the host OS/arch and resolves collaborator binaries under
// root (the directory external binaries are installed into; resolution
// and download bootstrap of that directory is an out-of-scope CLI
// collaborator — Probe only locates and permissions what is already
// there).
func Probe(root string) (Platform, error) {
	goos, err := classifyOS(runtime.GOOS)
	if err != nil {
		return Platform{}, err
	}
	arch, err := classifyArch(runtime.GOARCH)
	if err != nil {
		return Platform{}, err
	}

	exeSuffix := ""
	if goos == Windows {
		exeSuffix = ".exe"
	}

	bins := Binaries{
		RegistrationEngine: filepath.Join(root, "greedy"+exeSuffix),
		ImageTool:          filepath.Join(root, "c3d"+exeSuffix),
		DICOMConverter:     filepath.Join(root, "dcm2niix"+exeSuffix),
	}

	for _, bin := range []string{bins.RegistrationEngine, bins.ImageTool, bins.DICOMConverter} {
		if err := ensureExecutable(goos, bin); err != nil {
			return Platform{}, err
		}
	}

	glog.Infof("platform: os=%s arch=%s registration=%s imagetool=%s converter=%s",
		goos, arch, bins.RegistrationEngine, bins.ImageTool, bins.DICOMConverter)

	return Platform{OS: goos, Arch: arch, Binaries: bins}, nil
}

// ProbeVersions best-effort invokes each collaborator with --version
// and records its first output line, for reproducing a run's
// environment in the structured log. A collaborator that fails to start
// is recorded with its error instead of aborting the probe.
func ProbeVersions(ctx context.Context, bins Binaries, runner func(context.Context, []string) (procexec.Result, error)) map[string]string {
	if runner == nil {
		runner = procexec.Run
	}
	out := make(map[string]string, 3)
	for name, bin := range map[string]string{
		"registration_engine": bins.RegistrationEngine,
		"image_tool":          bins.ImageTool,
		"dicom_converter":     bins.DICOMConverter,
	} {
		res, err := runner(ctx, []string{bin, "--version"})
		if err != nil {
			out[name] = fmt.Sprintf("unavailable: %v", err)
			continue
		}
		firstLine := strings.SplitN(strings.TrimSpace(res.Stdout+res.Stderr), "\n", 2)[0]
		if firstLine == "" {
			firstLine = "unknown"
		}
		out[name] = firstLine
	}
	return out
}

func classifyOS(goos string) (OS, error) {
	switch goos {
	case "linux":
		return Linux, nil
	case "darwin":
		return Mac, nil
	case "windows":
		return Windows, nil
	default:
		return "", &UnsupportedPlatformError{GOOS: goos, GOARCH: runtime.GOARCH}
	}
}

func classifyArch(goarch string) (Arch, error) {
	switch goarch {
	case "amd64":
		return X86_64, nil
	case "arm64":
		return Arm64, nil
	default:
		return "", &UnsupportedPlatformError{GOOS: runtime.GOOS, GOARCH: goarch}
	}
}

// ensureExecutable grants execute permission on POSIX and full access on
// Windows. A missing binary is not itself fatal
// here (the bootstrap collaborator may still install it); permissioning
// only runs against files that already exist.
func ensureExecutable(goos OS, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		glog.Warningf("platform: %s not present yet, skipping permission grant", path)
		return nil
	}
	if err != nil {
		return err
	}

	if goos == Windows {
		return os.Chmod(path, 0o777)
	}
	return os.Chmod(path, info.Mode()|0o111)
}
