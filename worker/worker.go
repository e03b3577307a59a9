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

// Package worker runs one ClientWorker's full lifecycle: bootstrap, warm-up,
// delayed start for phase offsetting, the timed run itself, and teardown.
package worker

import (
	"context"
	"runtime"
	"time"

	"fortio.org/log"

	"github.com/nighthawk-io/nighthawk/benchmarkclient"
	"github.com/nighthawk-io/nighthawk/ratelimiter"
	"github.com/nighthawk-io/nighthawk/sequencer"
	"github.com/nighthawk-io/nighthawk/statistic"
)

// Config holds the per-worker parameters the Orchestrator computes.
type Config struct {
	WorkerNumber int
	ClientConfig benchmarkclient.Config
	RateLimiter  ratelimiter.RateLimiter
	Duration     time.Duration
	GraceTimeout time.Duration
	StartAt      time.Time // absolute instant (T0 + 2s + k*inter_worker_delay) the timed run should begin
}

// Worker runs one ClientWorker, pinned to its own OS thread for the
// duration of Run, matching the one-thread-per-worker model.
type Worker struct {
	cfg     Config
	client  *benchmarkclient.Client
	seq     *sequencer.Sequencer
	Success bool
}

// New constructs a Worker; Run performs the full bootstrap-through-teardown
// lifecycle and must only be called once.
func New(cfg Config) *Worker {
	return &Worker{
		cfg:    cfg,
		client: benchmarkclient.New(cfg.ClientConfig),
	}
}

// Run executes bootstrap, warm-up, delayed start, the timed sequencer run,
// and teardown, in that order, locking the calling goroutine to its OS
// thread for the duration (each worker owns one connection pool and must
// not migrate threads mid-run).
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Debugf("worker %d: bootstrapping", w.cfg.WorkerNumber)
	if err := w.client.Initialize(); err != nil {
		log.Errf("worker %d: failed to initialize http client: %v", w.cfg.WorkerNumber, err)
		w.Success = false
		return
	}

	w.simpleWarmup(ctx)

	w.client.SetMeasureLatencies(true)
	w.delayStart()

	w.seq = sequencer.New(w.cfg.RateLimiter, w.sequencerTarget(ctx), w.cfg.Duration, w.cfg.GraceTimeout)
	w.seq.Start()
	w.seq.WaitForCompletion()

	w.client.Terminate()
	w.Success = true
	log.Debugf("worker %d: done", w.cfg.WorkerNumber)
}

// simpleWarmup issues exactly one request with latency measurement
// disabled, to establish the first connection before the timed run begins,
// blocking until that single request completes.
func (w *Worker) simpleWarmup(ctx context.Context) {
	log.Debugf("worker %d: warming up", w.cfg.WorkerNumber)
	done := make(chan struct{})
	if !w.client.TryStartOne(ctx, func() { close(done) }) {
		// The connection pool is empty before warm-up; this should not
		// happen, but avoid blocking forever if it somehow does.
		return
	}
	<-done
}

// delayStart blocks until this worker's absolute phase-offset instant
// (T0 + 2s + k*inter_worker_delay, computed by the Orchestrator) has been
// reached, so workers fan out their first request evenly instead of firing
// in lockstep. Bootstrap and warm-up duration vary per worker, so this is
// measured against the shared T0 rather than a relative sleep counted from
// whenever each worker happens to reach this point. If the instant has
// already passed, it logs a warning and proceeds immediately.
func (w *Worker) delayStart() {
	if w.cfg.StartAt.IsZero() {
		return
	}
	remaining := time.Until(w.cfg.StartAt)
	if remaining <= 0 {
		log.Warnf("worker %d: missed phase-offset start instant by %v, proceeding immediately",
			w.cfg.WorkerNumber, -remaining)
		return
	}
	log.Debugf("worker %d: delaying start by %v", w.cfg.WorkerNumber, remaining)
	time.Sleep(remaining)
}

// sequencerTarget adapts the benchmark client's admission-gated TryStartOne
// into a sequencer.Target: its bool return is TryStartOne's own gate
// result (false iff the connection limit is currently saturated, in which
// case no request was issued and done will never fire), propagated
// straight through so the Sequencer records the resulting blocked time.
func (w *Worker) sequencerTarget(ctx context.Context) sequencer.Target {
	return func(done func()) bool {
		return w.client.TryStartOne(ctx, done)
	}
}

// Statistics returns the combined connect, response, and blocking-latency
// statistics recorded by this worker's client and sequencer.
func (w *Worker) Statistics() map[string]statistic.Statistic {
	out := map[string]statistic.Statistic{
		"benchmark_http_client.request_to_response": w.client.Statistics(),
		"benchmark_http_client.queue_to_connect":    w.client.ConnectStatistics(),
		"sequencer.callback":                        w.seq.Statistics(),
		"sequencer.blocking":                        w.seq.BlockingStatistics(),
	}
	return out
}

// Counters returns the benchmark client's request-outcome counters.
func (w *Worker) Counters() benchmarkclient.Counters {
	return w.client.Counters()
}
