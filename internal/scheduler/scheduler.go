package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/logger"
	"github.com/AI2HU/gsnweb/internal/metrics"
)

// Cleanup defaults
const (
	DefaultCleanupSpec = "@every 1h"

	// sessions are kept this long after their access token expired, so a refresh is still possible
	DefaultRetention = 24 * time.Hour
)

// Scheduler runs the periodic maintenance jobs of the backend
type Scheduler struct {
	db        db.Database
	cron      *cron.Cron
	retention time.Duration
	now       func() time.Time
	log       *logger.Logger
	running   bool
	mu        sync.Mutex
}

// New creates a new scheduler
func New(database db.Database, retention time.Duration) *Scheduler {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Scheduler{
		db:        database,
		cron:      cron.New(),
		retention: retention,
		now:       time.Now,
		log:       logger.Named("scheduler"),
	}
}

// Start registers the session cleanup on spec and starts the cron loop
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if spec == "" {
		spec = DefaultCleanupSpec
	}

	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.PurgeExpiredSessions(ctx); err != nil {
			s.log.Error("Failed to purge expired sessions: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.log.Info("Scheduler started, session cleanup on %q", spec)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.log.Info("Scheduler stopped")
}

// PurgeExpiredSessions deletes sessions whose token expired more than the retention ago
func (s *Scheduler) PurgeExpiredSessions(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)

	n, err := s.db.DeleteExpiredSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.AddSessionsPurged(n)
	if n > 0 {
		s.log.Info("Purged %d expired sessions", n)
	}
	return n, nil
}
