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

// Package ratelimiter implements the budget accountant that paces the
// Sequencer's target calls.
package ratelimiter

import (
	"sync"
	"time"

	"github.com/nighthawk-io/nighthawk/frequency"

	"fortio.org/log"
)

// RateLimiter grants at most one acquisition per interval on average,
// measured from its construction instant.
type RateLimiter interface {
	// TryAcquireOne attempts to consume one unit of budget; returns whether
	// it succeeded.
	TryAcquireOne() bool
	// ReleaseOne returns one unit of budget, as if it had never been acquired.
	ReleaseOne()
}

// LinearRateLimiter produces one acquisition every Interval() of elapsed
// monotonic time since its creation. It is safe for concurrent use, though
// in this repo each worker owns its own instance and never shares it.
type LinearRateLimiter struct {
	mu         sync.Mutex
	frequency  frequency.Frequency
	startedAt  time.Time
	acquirable int64
	acquired   int64
	nowFn      func() time.Time
}

// New constructs a LinearRateLimiter paced at the given frequency.
// Construction with frequency <= 0 is rejected by frequency.FromHz before
// this is ever called; New itself never fails.
func New(f frequency.Frequency) *LinearRateLimiter {
	return newWithClock(f, time.Now)
}

// newWithClock allows tests to substitute a simulated clock.
func newWithClock(f frequency.Frequency, nowFn func() time.Time) *LinearRateLimiter {
	return &LinearRateLimiter{
		frequency: f,
		startedAt: nowFn(),
		nowFn:     nowFn,
	}
}

// TryAcquireOne implements RateLimiter. Ported from Nighthawk's
// LinearRateLimiter::tryAcquireOne: if there is budget outstanding from the
// last recompute, spend it; otherwise recompute the budget as
// floor(elapsed/interval) - acquired and retry once.
func (r *LinearRateLimiter) TryAcquireOne() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acquirable > 0 {
		r.acquirable--
		r.acquired++
		return true
	}
	elapsed := r.nowFn().Sub(r.startedAt)
	r.acquirable = int64(elapsed/r.frequency.Interval()) - r.acquired
	if r.acquirable > 0 {
		r.acquirable--
		r.acquired++
		return true
	}
	return false
}

// ReleaseOne implements RateLimiter.
func (r *LinearRateLimiter) ReleaseOne() {
	r.mu.Lock()
	r.acquirable++
	r.acquired--
	r.mu.Unlock()
	log.LogVf("rate limiter release, acquired=%d acquirable=%d", r.acquired, r.acquirable)
}
