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

// Package sched is FALCON-Z's one parallel primitive: free/busy worker
// bookkeeping and channel-based job submission over a bounded pool of
// goroutines, generalized to independent tasks (no task ever touches
// the state of another) so every pool the pipeline runs — ingest,
// start-frame selection, alignment — goes through the same code.
package sched

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Task is one unit of bounded-parallel work.
type Task[T any] struct {
	Item  T
	Index int
}

// MapBounded runs f over every item in items with at most poolSize
// workers in flight at once, and returns results in the same order as
// items regardless of completion order — completion order is
// irrelevant to correctness, so ordering is restored here and callers
// never have to sort by hand.
func MapBounded[T any, R any](ctx context.Context, poolSize int, items []T, f func(ctx context.Context, item T, index int) (R, error)) ([]R, []error) {
	if poolSize < 1 {
		poolSize = 1
	}
	n := len(items)
	results := make([]R, n)
	errs := make([]error, n)

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			glog.V(2).Infof("sched: worker picking up index %d", idx)
			r, err := f(ctx, items[idx], idx)
			results[idx] = r
			errs[idx] = err
		}
	}

	workers := poolSize
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return results, errs
}

// FirstError returns the first non-nil error in errs, or nil.
func FirstError(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// AnyError reports whether errs contains a non-nil error.
func AnyError(errs []error) bool {
	return FirstError(errs) != nil
}
