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

// Command falconz is the FALCON-Z dynamic-PET motion-correction pipeline
// entry point. This is the one place allowed to call os.Exit; every
// component below it returns explicit errors instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/errs"
	"github.com/falconz/falconz/internal/pipeline"
	"github.com/falconz/falconz/internal/reporter"
)

var (
	directoryFlag    = flag.String("directory", "", "input directory holding the dynamic PET series (required)")
	referenceFlag    = flag.Int("reference-frame-index", -1, "frame index to register everything to; -1 means the last frame")
	startFrameFlag   = flag.String("start-frame", "auto", "explicit start index, or \"auto\" to run the §4.E selector")
	registrationFlag = flag.String("registration", "", "registration paradigm: rigid, affine, or deformable (required)")
	iterationsFlag   = flag.String("multi-resolution-iterations", pipeline.DefaultIterations, "multi-resolution iteration schedule passed opaquely to the engine")
	modeFlag         = flag.String("mode", string(pipeline.Cruise), "cruise or dash; dash overrides the iteration schedule to the fast preset")
	binariesDirFlag  = flag.String("binaries-dir", "", "directory holding the registration engine, image tool, and DICOM converter")
	verboseFlag      = flag.Bool("verbose", false, "enable verbose progress reporting on stdout")
)

func main() {
	flag.Parse()

	cfg, err := pipeline.ParseConfig(*directoryFlag, *referenceFlag, *startFrameFlag, *registrationFlag, *iterationsFlag, *modeFlag, *binariesDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falconz: %v\n", err)
		os.Exit(errs.Config.ExitCode())
	}

	var rep reporter.Reporter = reporter.NoOp{}
	if *verboseFlag {
		rep = &reporter.Console{Label: "falconz"}
	}

	result, err := pipeline.Run(context.Background(), cfg, rep)
	if err != nil {
		code := exitCodeFor(err)
		fmt.Fprintf(os.Stderr, "falconz: %v\n", err)
		for _, f := range result.Failures {
			fmt.Fprintf(os.Stderr, "  frame %s failed at %s (exit %d): %s\n", f.Frame.Name(), f.Step, f.ExitCode, f.StderrTail)
		}
		os.Exit(code)
	}

	fmt.Printf("falconz: wrote %s (%d frames) in %s\n", result.MergedPath, result.FrameCount, result.Session.WorkingDir)
	glog.Flush()
}

// exitCodeFor maps a pipeline error to its process exit code, defaulting
// to 1 (Config/Platform's own default) for an error that somehow carries
// no category.
func exitCodeFor(err error) int {
	if cat, ok := errs.CategoryOf(err); ok {
		return cat.ExitCode()
	}
	return 1
}
