// Copyright 2017 Fortio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package orchestrator resolves the target endpoint once, fans out
// concurrency workers with evenly staggered phase offsets, and merges their
// statistics and counters once every worker has completed.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"fortio.org/log"

	"github.com/nighthawk-io/nighthawk/benchmarkclient"
	"github.com/nighthawk-io/nighthawk/endpoint"
	"github.com/nighthawk-io/nighthawk/frequency"
	"github.com/nighthawk-io/nighthawk/ratelimiter"
	"github.com/nighthawk-io/nighthawk/statistic"
	"github.com/nighthawk-io/nighthawk/worker"
)

// Config holds the run-wide parameters that fan out into per-worker configs.
type Config struct {
	URI             string
	RPS             float64
	Concurrency     string // "auto" or a positive integer
	Duration        time.Duration
	Timeout         time.Duration // gates both connect timeout and the sequencer's grace period
	H2              bool
	ConnectionLimit int
	RequestHeaders  map[string][]string
}

// Result is the merged outcome of every worker's run.
type Result struct {
	Endpoint    endpoint.Endpoint
	Concurrency int
	Statistics  map[string]statistic.Statistic
	Counters    benchmarkclient.Counters
	Success     bool
}

// ResolveConcurrency interprets the "auto" | N concurrency option.
func ResolveConcurrency(concurrency string) (int, error) {
	if concurrency == "" || concurrency == "auto" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(concurrency)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid concurrency %q: want \"auto\" or a positive integer", concurrency)
	}
	return n, nil
}

// phaseOffsetMargin is the safety margin added ahead of the first phase
// offset so that per-worker bootstrap/warm-up time (which varies) cannot
// push a worker's start past its assigned instant.
const phaseOffsetMargin = 2 * time.Second

// Run resolves the endpoint, starts Concurrency workers phase-offset to
// spread their starts evenly across one global pacing interval, waits for
// all to finish, and merges their statistics and counters.
func Run(ctx context.Context, cfg Config) (Result, error) {
	ep, err := endpoint.Parse(cfg.URI)
	if err != nil {
		return Result{}, err
	}
	if !ep.IsValid() {
		return Result{}, fmt.Errorf("invalid endpoint %q", cfg.URI)
	}
	if err := ep.Resolve(ctx); err != nil {
		return Result{}, err
	}

	concurrency, err := ResolveConcurrency(cfg.Concurrency)
	if err != nil {
		return Result{}, err
	}

	perWorkerHz := cfg.RPS / float64(concurrency)
	workerFreq, err := frequency.FromHz(perWorkerHz)
	if err != nil {
		return Result{}, fmt.Errorf("rps %v spread over %d workers: %w", cfg.RPS, concurrency, err)
	}

	// Workers are phase-offset so their first requests are evenly spaced
	// across one global-pacing interval instead of firing in lockstep:
	// e.g. 10 workers at a combined 10k rps offset by [0us, 10us, ..., 90us]
	// past T0+2s. The 2-second margin absorbs per-worker bootstrap/warm-up
	// time, which varies, so the stagger is measured from one shared clock
	// reading rather than from each worker's own post-warm-up clock.
	interWorkerDelay := time.Duration(float64(time.Second) / cfg.RPS / float64(concurrency))
	t0 := time.Now()

	headers := make(map[string][]string, len(cfg.RequestHeaders))
	for k, v := range cfg.RequestHeaders {
		headers[k] = v
	}

	workers := make([]*worker.Worker, concurrency)
	for i := 0; i < concurrency; i++ {
		workers[i] = worker.New(worker.Config{
			WorkerNumber: i,
			ClientConfig: benchmarkclient.Config{
				Endpoint:        ep,
				H2:              cfg.H2,
				ConnectTimeout:  cfg.Timeout,
				RequestHeaders:  headers,
				ConnectionLimit: cfg.ConnectionLimit,
			},
			RateLimiter:  ratelimiter.New(workerFreq),
			Duration:     cfg.Duration,
			GraceTimeout: cfg.Timeout,
			StartAt:      t0.Add(phaseOffsetMargin + time.Duration(i)*interWorkerDelay),
		})
	}

	var wg sync.WaitGroup
	wg.Add(len(workers))
	for _, w := range workers {
		w := w
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()

	success := true
	for _, w := range workers {
		success = success && w.Success
	}

	merged := mergeStatistics(workers)
	counters := mergeCounters(workers)
	log.Debugf("orchestrator: %d workers done, success=%v", concurrency, success)

	return Result{
		Endpoint:    ep,
		Concurrency: concurrency,
		Statistics:  merged,
		Counters:    counters,
		Success:     success,
	}, nil
}

// mergeStatistics combines same-named statistics across all workers via
// Statistic.Combine, seeded from worker 0's statistic set (every worker
// produces the same set of named statistics).
func mergeStatistics(workers []*worker.Worker) map[string]statistic.Statistic {
	if len(workers) == 0 {
		return nil
	}
	merged := make(map[string]statistic.Statistic)
	for name, s := range workers[0].Statistics() {
		s.SetID(name)
		merged[name] = s
	}
	for _, w := range workers[1:] {
		for name, s := range w.Statistics() {
			merged[name] = merged[name].Combine(s)
		}
	}
	return merged
}

// mergeCounters sums same-named counters across all workers.
func mergeCounters(workers []*worker.Worker) benchmarkclient.Counters {
	merged := benchmarkclient.Counters{}
	for _, w := range workers {
		for name, v := range w.Counters() {
			merged[name] += v
		}
	}
	return merged
}
