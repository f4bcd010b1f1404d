package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSchedulerRunsJobsPeriodically(t *testing.T) {
	s := New(zap.NewNop())

	var runs int64
	s.Register("counter", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt64(&runs); got < 2 {
		t.Errorf("job ran %d times, want at least 2", got)
	}
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	s := New(zap.NewNop())

	var runs int64
	s.Register("counter", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	after := atomic.LoadInt64(&runs)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != after {
		t.Errorf("job kept running after Stop: %d -> %d", after, got)
	}
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	s := New(zap.NewNop())

	var failing, healthy int64
	s.Register("failing", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&failing, 1)
		return errors.New("mail source unreachable")
	})
	s.Register("panicking", 10*time.Millisecond, func(ctx context.Context) error {
		panic("boom")
	})
	s.Register("healthy", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&healthy, 1)
		return nil
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt64(&failing); got < 2 {
		t.Errorf("failing job stopped rescheduling after an error: %d runs", got)
	}
	if got := atomic.LoadInt64(&healthy); got < 2 {
		t.Errorf("healthy job starved by failing jobs: %d runs", got)
	}
}

func TestSchedulerJobsDoNotOverlap(t *testing.T) {
	s := New(zap.NewNop())

	var active, overlapped int64
	s.Register("slow", 5*time.Millisecond, func(ctx context.Context) error {
		if atomic.AddInt64(&active, 1) > 1 {
			atomic.AddInt64(&overlapped, 1)
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return nil
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt64(&overlapped); got != 0 {
		t.Errorf("observed %d overlapping runs of the same job", got)
	}
}
