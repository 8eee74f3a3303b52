// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/pkg/logger"
)

// RunFunc performs one job run and reports how many items it touched.
type RunFunc func(ctx context.Context) (int, error)

// Scheduler runs registered jobs. It implements system.Service.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	jobs   map[string]RunFunc
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler whose runs are cut off after timeout.
func New(timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log)), cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		log:     log,
		timeout: timeout,
		jobs:    make(map[string]RunFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules run under spec (standard five-field or @every syntax). An
// empty spec leaves the job disabled.
func (s *Scheduler) Add(name, spec string, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	if spec == "" {
		s.log.WithField("job", name).Info("job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.execute(name, run) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.jobs[name] = run
	return nil
}

// Jobs lists the enabled job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

// RunNow executes an enabled job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	run, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.execute(name, run)
}

func (s *Scheduler) execute(name string, run RunFunc) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := run(ctx)
	elapsed := time.Since(start)
	metrics.RecordJobRun(name, elapsed, err == nil)

	entry := s.log.WithField("job", name).WithField("duration_ms", elapsed.Milliseconds())
	if err != nil {
		entry.WithError(err).Error("job failed")
		return err
	}
	if n > 0 {
		entry.WithField("affected", n).Info("job finished")
	} else {
		entry.Debug("job finished")
	}
	return nil
}

func (s *Scheduler) Name() string { return "jobs" }

func (s *Scheduler) Start(context.Context) error {
	s.cron.Start()
	s.log.WithField("jobs", len(s.Jobs())).Info("scheduler started")
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
