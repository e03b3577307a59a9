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

// Package sequencer paces calls to a target function against a rate limiter
// for a fixed duration, tracking how many completed in time and how many
// were still outstanding when the grace period following duration expired.
package sequencer

import (
	"runtime"
	"sync"
	"time"

	"fortio.org/log"

	"github.com/nighthawk-io/nighthawk/ratelimiter"
	"github.com/nighthawk-io/nighthawk/statistic"
)

// periodicResolution mirrors Envoy's minimum timer resolution; the periodic
// tick fires at this interval until the sequencer stops.
const periodicResolution = time.Millisecond

// State is the Sequencer's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Target is called once per acquired rate-limiter slot. ok reports whether a
// new operation could be started at all (false only when already-outstanding
// work prevents admitting more). When it returns true it must call done()
// exactly once, synchronously or later from another goroutine, when the
// operation completes; when it returns false it must never call done().
type Target func(done func()) (ok bool)

// Sequencer drives Target calls at a rate-limited pace for a fixed duration,
// then waits up to grace_timeout for in-flight completions before stopping.
type Sequencer struct {
	rateLimiter  ratelimiter.RateLimiter
	target       Target
	duration     time.Duration
	graceTimeout time.Duration

	mu               sync.Mutex
	state            State
	start            time.Time
	targetsInitiated int64
	targetsCompleted int64
	latencyStat      statistic.Statistic
	blockingStat     statistic.Statistic
	blockedSince     time.Time // zero when not currently blocked
	spinWhenIdle     bool

	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Sequencer with spinWhenIdle enabled: while there is no
// outstanding work it yields and re-fires the incidental run immediately,
// trading CPU for measurement accuracy.
func New(rl ratelimiter.RateLimiter, target Target, duration, graceTimeout time.Duration) *Sequencer {
	return &Sequencer{
		rateLimiter:  rl,
		target:       target,
		duration:     duration,
		graceTimeout: graceTimeout,
		state:        Idle,
		latencyStat:  statistic.NewStreaming(),
		blockingStat: statistic.NewStreaming(),
		spinWhenIdle: true,
		done:         make(chan struct{}),
	}
}

// Start begins the run; it returns immediately, driving the pacing loop on
// its own goroutine. Call WaitForCompletion to block until the run ends.
func (s *Sequencer) Start() {
	s.mu.Lock()
	s.start = time.Now()
	s.state = Running
	s.mu.Unlock()
	go s.loop()
}

// WaitForCompletion blocks until the sequencer has stopped (duration
// elapsed and all work completed, or the grace period timed out).
func (s *Sequencer) WaitForCompletion() {
	<-s.done
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CompletionsPerSecond returns targets_completed / elapsed seconds.
func (s *Sequencer) CompletionsPerSecond() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.targetsCompleted) / elapsed
}

// Statistics returns the callback-latency statistic (time from an
// operation's admission to its completion callback).
func (s *Sequencer) Statistics() statistic.Statistic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latencyStat
}

// BlockingStatistics returns the blocked-time statistic: how long the
// target refused admission (returned false) while the rate limiter still
// had budget to grant.
func (s *Sequencer) BlockingStatistics() statistic.Statistic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockingStat
}

// loop is the goroutine equivalent of Envoy's two-timer dispatcher loop:
// a periodic tick every periodicResolution until the sequencer stops, and
// an "incidental" re-run (nudge, on its own goroutine) fired after every
// completion and after every idle off-timer pass, which is what the
// spin-when-idle case exploits to keep polling without waiting a full tick.
func (s *Sequencer) loop() {
	if s.run(true) {
		s.closeDone()
		return
	}
	ticker := time.NewTicker(periodicResolution)
	defer ticker.Stop()
	for range ticker.C {
		if s.run(true) {
			s.closeDone()
			return
		}
	}
}

// run executes one pass of the pacing logic. It returns true once the
// sequencer has stopped (either normally or via grace timeout).
func (s *Sequencer) run(fromTimer bool) (stopped bool) {
	s.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(s.start)

	if elapsed > s.duration {
		rate := s.completionsPerSecondLocked(now)
		if s.targetsCompleted == s.targetsInitiated {
			s.state = Stopped
			s.flushBlockedLocked(now)
			s.mu.Unlock()
			log.Debugf("sequencer done: %d operations in %v (%.2f/s)", s.targetsCompleted, elapsed, rate)
			return true
		}
		if elapsed-s.duration > s.graceTimeout {
			s.state = Stopped
			s.flushBlockedLocked(now)
			s.mu.Unlock()
			log.Warnf("sequencer timed out waiting for due responses: initiated=%d completed=%d (~%.2f/s)",
				s.targetsInitiated, s.targetsCompleted, rate)
			return true
		}
		s.state = Draining
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	blocked := false
	for s.rateLimiter.TryAcquireOne() {
		start := time.Now()
		ok := s.target(func() {
			dur := time.Since(start)
			s.mu.Lock()
			s.latencyStat.Add(dur.Nanoseconds())
			s.targetsCompleted++
			s.mu.Unlock()
			s.nudge()
		})
		if ok {
			s.mu.Lock()
			s.targetsInitiated++
			s.mu.Unlock()
		} else {
			// The target refused admission while the rate limiter still
			// had budget: release it and track how long this lasts.
			s.rateLimiter.ReleaseOne()
			blocked = true
			break
		}
	}
	s.recordBlocked(blocked, now)

	if !fromTimer {
		s.mu.Lock()
		idle := s.spinWhenIdle && s.targetsInitiated == s.targetsCompleted
		s.mu.Unlock()
		if idle {
			runtime.Gosched()
			s.nudge()
		}
	}
	return false
}

// recordBlocked tracks transitions into and out of the blocked state: on
// the first blocked observation it latches blockedSince, and on the first
// unblocked observation afterward it adds the elapsed blocked duration to
// blockingStat.
func (s *Sequencer) recordBlocked(blocked bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blocked {
		if s.blockedSince.IsZero() {
			s.blockedSince = now
		}
		return
	}
	s.flushBlockedLocked(now)
}

// flushBlockedLocked adds the elapsed blocked duration (if any is
// outstanding) to blockingStat and clears it. Caller must hold s.mu.
func (s *Sequencer) flushBlockedLocked(now time.Time) {
	if !s.blockedSince.IsZero() {
		s.blockingStat.Add(now.Sub(s.blockedSince).Nanoseconds())
		s.blockedSince = time.Time{}
	}
}

// nudge schedules an immediate off-timer re-run, standing in for the
// incidental timer firing with a zero delay.
func (s *Sequencer) nudge() {
	go func() {
		if s.run(false) {
			s.closeDone()
		}
	}()
}

// closeDone closes the completion channel exactly once, however many of the
// periodic and incidental goroutines race to report the stop.
func (s *Sequencer) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Sequencer) completionsPerSecondLocked(now time.Time) float64 {
	elapsed := now.Sub(s.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.targetsCompleted) / elapsed
}
