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

// Package resources derives how many registration jobs may run in
// parallel from the host's available RAM and CPU threads. No
// third-party system-info library fits this narrow a concern, so it
// stays on the standard library.
package resources

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/falconz/falconz/internal/align"
)

// Minima is the per-paradigm resource minimum table.
type Minima struct {
	MinMemGB     int
	MinThreads   int
}

var paradigmMinima = map[align.Paradigm]Minima{
	align.Rigid:      {MinMemGB: 4, MinThreads: 2},
	align.Affine:     {MinMemGB: 8, MinThreads: 4},
	align.Deformable: {MinMemGB: 16, MinThreads: 8},
}

// Estimate is the result of a preflight resource check.
type Estimate struct {
	NumJobs       int
	AvailMemGB    float64
	AvailThreads  int
	Clamped       bool // true if num_jobs was 0 and got clamped to 1
}

// EstimateParallelJobs computes (num_jobs, avail_mem_gb, avail_threads) as
// min(avail_mem_gb/min_mem_per_job, avail_threads/min_threads_per_job),
// clamping to 1 when the result would be 0: over-subscription is
// preferred to refusal.
func EstimateParallelJobs(paradigm align.Paradigm, memReader func() (float64, error)) (Estimate, error) {
	minima, ok := paradigmMinima[paradigm]
	if !ok {
		minima = paradigmMinima[align.Rigid]
	}

	if memReader == nil {
		memReader = AvailableMemGB
	}
	memGB, err := memReader()
	if err != nil {
		return Estimate{}, err
	}
	threads := runtime.NumCPU()

	byMem := int(memGB / float64(minima.MinMemGB))
	byThreads := threads / minima.MinThreads
	numJobs := byMem
	if byThreads < numJobs {
		numJobs = byThreads
	}

	est := Estimate{NumJobs: numJobs, AvailMemGB: memGB, AvailThreads: threads}
	if numJobs <= 0 {
		glog.Warningf("resources: preflight estimate for %s was %d, over-subscribing to 1 (mem=%.1fGB threads=%d)",
			paradigm, numJobs, memGB, threads)
		est.NumJobs = 1
		est.Clamped = true
	}
	return est, nil
}

// AvailableMemGB reads available system memory in gibibytes. On Linux it
// parses /proc/meminfo's MemAvailable line; elsewhere it falls back to a
// conservative constant since this pack carries no cross-platform
// memory-probing dependency.
func AvailableMemGB() (float64, error) {
	if runtime.GOOS != "linux" {
		glog.Warningf("resources: no memory probe for GOOS=%s, assuming 16GB available", runtime.GOOS)
		return 16, nil
	}

	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, err
		}
		return kb / (1024 * 1024), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	glog.Warningf("resources: MemAvailable not found in /proc/meminfo, assuming 16GB")
	return 16, nil
}

// SchedulerDegree computes the ingest, start-frame-selection, and
// alignment pool sizes respectively.
func SchedulerDegree() (poolC, poolE, poolF int) {
	cpu := runtime.NumCPU()
	poolC = cpu
	poolE = ceilDiv(cpu, 2)
	poolF = cpu / 8
	if poolF < 1 {
		poolF = 1
	}
	return poolC, poolE, poolF
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
