package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type scheduledPoll struct {
	coordinator *Coordinator
	entryID     cron.EntryID
}

// Scheduler drives the periodic refresh of every registered coordinator.
// A poll that is still running when its next tick fires is skipped.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	polls   map[string]*scheduledPoll
	running bool
}

// NewScheduler creates a scheduler polling every interval (ScanInterval when
// zero).
func NewScheduler(interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = ScanInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithChain(
				cron.Recover(cronLogger),
			),
		),
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		polls:    make(map[string]*scheduledPoll),
	}
}

// Start begins polling
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("interval", s.interval.String()).Info("Coordinator scheduler started")
	return nil
}

// Stop stops polling, cancels in-flight refreshes and waits for them to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("All coordinator polls completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Timeout waiting for coordinator polls to complete")
	}
	s.running = false
}

// Add schedules c under key, replacing any previous coordinator for key
func (s *Scheduler) Add(key string, c *Coordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.polls[key]; ok {
		s.cron.Remove(existing.entryID)
		delete(s.polls, key)
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.logger))).Then(cron.FuncJob(func() {
		if err := c.Refresh(s.ctx); err != nil {
			s.logger.WithField("device", c.Name()).Debug("Scheduled poll failed")
		}
	}))

	entryID, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.interval), job)
	if err != nil {
		return fmt.Errorf("failed to schedule poll for %s: %w", key, err)
	}
	s.polls[key] = &scheduledPoll{coordinator: c, entryID: entryID}

	s.logger.WithFields(logrus.Fields{
		"key":      key,
		"device":   c.Name(),
		"next_run": s.cron.Entry(entryID).Next,
	}).Debug("Coordinator poll scheduled")
	return nil
}

// Remove unschedules the coordinator registered under key
func (s *Scheduler) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.polls[key]; ok {
		s.cron.Remove(existing.entryID)
		delete(s.polls, key)
	}
}

// Scheduled reports whether key has a scheduled poll
func (s *Scheduler) Scheduled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.polls[key]
	return ok
}

// NextRun returns when key is next polled, or the zero time if it is not
// scheduled or the scheduler is stopped.
func (s *Scheduler) NextRun(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.polls[key]; ok {
		return s.cron.Entry(p.entryID).Next
	}
	return time.Time{}
}
