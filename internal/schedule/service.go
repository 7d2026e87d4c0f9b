// Package schedule runs named periodic jobs on a cron scheduler.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Service owns a cron instance and the named jobs registered on it.
type Service struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewService creates a stopped scheduler. timeout bounds each job run; zero
// means no bound.
func NewService(log *slog.Logger, timeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		logger:  log.With(slog.String("service", "schedule")),
		timeout: timeout,
		jobs:    map[string]cron.EntryID{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name with a cron pattern. An existing job with the
// same name is replaced.
func (s *Service) Add(name, pattern string, job JobFunc) error {
	name = strings.TrimSpace(name)
	pattern = strings.TrimSpace(pattern)
	if name == "" || pattern == "" || job == nil {
		return errors.New("name, pattern and job are required")
	}
	sched, err := s.parser.Parse(pattern)
	if err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", pattern, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
	}
	s.jobs[name] = s.cron.Schedule(sched, cron.FuncJob(func() {
		_ = s.run(name, job)
	}))
	return nil
}

// Trigger runs a registered job immediately on the caller's goroutine.
func (s *Service) Trigger(name string, job JobFunc) error {
	if job == nil {
		return fmt.Errorf("job %q has no body", name)
	}
	return s.run(name, job)
}

// Jobs returns the registered job names and their next activation.
func (s *Service) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Start begins dispatching jobs in the background.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

// Stop halts dispatch, cancels running jobs and waits for them to return or
// for ctx to end.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(name string, job JobFunc) (err error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := s.logger.With(slog.String("job", name))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		if err != nil {
			log.Error("scheduled job failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
			return
		}
		log.Debug("scheduled job done", slog.Duration("elapsed", time.Since(start)))
	}()
	return job(ctx)
}
