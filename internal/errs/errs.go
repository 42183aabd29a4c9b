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

// Package errs carries the pipeline's error taxonomy as a leaf package
// every component can depend on without creating an import cycle back
// into the driver. Errors are typed and wrapped and threaded up through
// explicit returns; only cmd/falconz is allowed to call os.Exit.
package errs

import "fmt"

// Category is one of the six stages a failure can be attributed to.
type Category int

const (
	Config Category = iota + 1
	Platform
	Ingestion
	Selection
	Alignment
	Assembly
)

func (c Category) String() string {
	switch c {
	case Config:
		return "Config"
	case Platform:
		return "Platform"
	case Ingestion:
		return "Ingestion"
	case Selection:
		return "Selection"
	case Alignment:
		return "Alignment"
	case Assembly:
		return "Assembly"
	default:
		return "Unknown"
	}
}

// ExitCode maps a Category to its process exit code.
func (c Category) ExitCode() int {
	switch c {
	case Config:
		return 1
	case Platform:
		return 1
	case Ingestion:
		return 2
	case Selection:
		return 3
	case Alignment:
		return 4
	case Assembly:
		return 5
	default:
		return 1
	}
}

// Error is a categorized, wrapped pipeline error.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a Category to err. Wrap(category, nil) returns nil so callers
// can write `return errs.Wrap(Ingestion, err)` unconditionally at the
// end of a function.
func Wrap(category Category, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Err: err}
}

// Wrapf categorizes a newly-formatted error in one call.
func Wrapf(category Category, format string, args ...interface{}) error {
	return &Error{Category: category, Err: fmt.Errorf(format, args...)}
}

// CategoryOf extracts the Category from err, if any component in its
// chain is an *Error.
func CategoryOf(err error) (Category, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Category, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
