// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Job is one cron-triggered task the scheduler dispatches.
type Job struct {
	Name string
	Expr *Expression
	Run  func(ctx context.Context)

	nextRun time.Time
}

// Scheduler evaluates a fixed set of cron jobs once a minute and
// dispatches each due job in its own goroutine.
type Scheduler struct {
	jobs            []*Job
	jobTimeout      time.Duration
	checkInterval   time.Duration
	loc             *time.Location

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Scheduler for jobs, evaluated in loc (UTC if nil). Each
// dispatched job gets jobTimeout to complete.
func New(jobs []*Job, jobTimeout time.Duration, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	now := time.Now()
	for _, j := range jobs {
		j.nextRun = j.Expr.NextRun(now, loc)
	}
	return &Scheduler{
		jobs:          jobs,
		jobTimeout:    jobTimeout,
		checkInterval: time.Minute,
		loc:           loc,
	}
}

// Start begins the scheduler loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	logging.Info().Int("jobs", len(s.jobs)).Msg("starting scheduler")
	go s.run(ctx)
}

// Stop halts the scheduler loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkAndDispatch(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) checkAndDispatch(ctx context.Context) {
	now := time.Now().In(s.loc)
	for _, j := range s.jobs {
		if now.Before(j.nextRun) {
			continue
		}
		j.nextRun = j.Expr.NextRun(now, s.loc)

		jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
		go func(j *Job) {
			defer cancel()
			logging.Info().Str("job", j.Name).Msg("dispatching scheduled job")
			j.Run(jobCtx)
		}(j)
	}
}
