// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule runs periodic cache maintenance while the server is up.
package schedule

import (
	"context"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
)

// stopTimeout bounds how long Stop waits for a running sweep.
const stopTimeout = 5 * time.Second

// Sweeper is the cache operation a sweep needs.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) int
}

// Service deletes cache records older than maxAge on a cron schedule.
type Service struct {
	target  Sweeper
	spec    string
	maxAge  time.Duration
	log     *zap.Logger
	mu      sync.Mutex
	cron    *rcron.Cron
	entry   rcron.EntryID
	lastRun time.Time
	removed int
}

// New returns a Service. spec is a standard five-field cron expression or a
// descriptor such as "@every 6h" or "@daily".
func New(target Sweeper, spec string, maxAge time.Duration, log *zap.Logger) *Service {
	return &Service{
		target: target,
		spec:   spec,
		maxAge: maxAge,
		log:    logging.OrNop(log).Named("schedule"),
	}
}

// Start registers the sweep and starts the scheduler. The scheduler stops
// when ctx ends or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	c := rcron.New()
	id, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return eris.Wrapf(err, "invalid sweep schedule %q", s.spec)
	}

	s.mu.Lock()
	s.cron = c
	s.entry = id
	s.mu.Unlock()

	c.Start()
	s.log.Info("cache sweep scheduled",
		zap.String("schedule", s.spec),
		zap.Duration("max_age", s.maxAge),
		zap.Time("next", c.Entry(id).Next))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one sweep immediately and returns the number of records
// removed.
func (s *Service) RunOnce(ctx context.Context) int {
	n := s.target.Sweep(ctx, s.maxAge)
	metrics.CacheSwept.Add(int64(n))

	s.mu.Lock()
	s.lastRun = time.Now()
	s.removed += n
	s.mu.Unlock()

	s.log.Info("cache swept", zap.Int("removed", n))
	return n
}

// Status reports when the last sweep ran, the total removed since start,
// and the next scheduled run (zero when not started).
func (s *Service) Status() (last time.Time, removed int, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		next = s.cron.Entry(s.entry).Next
	}
	return s.lastRun, s.removed, next
}

// Stop halts the scheduler and waits briefly for a running sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		s.log.Warn("timed out waiting for running sweep")
	}
	s.log.Info("sweep scheduler stopped")
}
