package sequencer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nighthawk-io/nighthawk/frequency"
	"github.com/nighthawk-io/nighthawk/ratelimiter"
)

func TestSequencerCompletesAllAdmittedWork(t *testing.T) {
	freq := frequency.MustFromHz(200) // 200 Hz -> up to ~20 over 100ms
	rl := ratelimiter.New(freq)

	var initiated, completed int64
	target := func(done func()) bool {
		atomic.AddInt64(&initiated, 1)
		go func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&completed, 1)
			done()
		}()
		return true
	}

	s := New(rl, target, 100*time.Millisecond, 200*time.Millisecond)
	s.Start()
	s.WaitForCompletion()

	if s.State() != Stopped {
		t.Errorf("state = %v, want Stopped", s.State())
	}
	gotInitiated := atomic.LoadInt64(&initiated)
	gotCompleted := atomic.LoadInt64(&completed)
	if gotInitiated == 0 {
		t.Error("expected at least one operation to be initiated")
	}
	if gotCompleted != gotInitiated {
		t.Errorf("completed = %d, initiated = %d, want equal (grace period should have drained them)", gotCompleted, gotInitiated)
	}
	if s.Statistics().Count() != gotCompleted {
		t.Errorf("latency stat count = %d, want %d", s.Statistics().Count(), gotCompleted)
	}
}

func TestSequencerGraceTimeoutStopsWithOutstandingWork(t *testing.T) {
	freq := frequency.MustFromHz(100)
	rl := ratelimiter.New(freq)

	target := func(done func()) bool {
		// Never calls done(): simulates a permanently stuck in-flight operation.
		return true
	}

	s := New(rl, target, 20*time.Millisecond, 20*time.Millisecond)
	s.Start()
	s.WaitForCompletion()

	if s.State() != Stopped {
		t.Errorf("state = %v, want Stopped", s.State())
	}
}

func TestSequencerAlwaysBlockedRecordsBlockingSamples(t *testing.T) {
	freq := frequency.MustFromHz(200)
	rl := ratelimiter.New(freq)

	target := func(done func()) bool {
		// Always refuses: the rate limiter has budget but the target never
		// admits, so every pass should be recorded as blocked time.
		return false
	}

	s := New(rl, target, 20*time.Millisecond, 20*time.Millisecond)
	s.Start()
	s.WaitForCompletion()

	if s.State() != Stopped {
		t.Errorf("state = %v, want Stopped", s.State())
	}
	if s.Statistics().Count() != 0 {
		t.Errorf("latency stat count = %d, want 0 (target never admitted)", s.Statistics().Count())
	}
	if s.BlockingStatistics().Count() == 0 {
		t.Error("expected at least one blocking sample")
	}
}
