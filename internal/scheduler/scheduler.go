package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task. Runs of the same job never overlap: each job
// gets a single goroutine that runs sequentially on its ticker.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns job registrations and a start/stop lifecycle. It is built
// once at process start and torn down on shutdown.
type Scheduler struct {
	jobs   []Job
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per registered job. Each job runs once
// immediately, then on every tick.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(job)
		s.log.Info("job scheduled",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runLoop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(job)
	for {
		select {
		case <-ticker.C:
			s.runOnce(job)
		case <-s.ctx.Done():
			s.log.Info("job stopped", zap.String("job", job.Name))
			return
		}
	}
}

// runOnce executes a single tick. A failed or panicking run is logged and
// ends early; the next tick proceeds unaffected.
func (s *Scheduler) runOnce(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked",
				zap.String("job", job.Name),
				zap.Error(fmt.Errorf("%v", r)))
		}
	}()

	if err := job.Run(s.ctx); err != nil {
		s.log.Error("job run failed", zap.String("job", job.Name), zap.Error(err))
	}
}
