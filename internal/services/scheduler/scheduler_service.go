package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// jobEntry tracks one scheduled target
type jobEntry struct {
	targetID uint64
	interval time.Duration
	cronID   cron.EntryID
}

// Service implements SchedulerService: one cron entry per enabled
// target, each wrapped in SkipIfStillRunning so a slow check coalesces
// backlogged firings instead of stacking them.
type Service struct {
	storage      interfaces.StorageManager
	monitor      interfaces.MonitorService
	eventService interfaces.EventService
	cron         *cron.Cron
	logger       arbor.ILogger

	mu      sync.Mutex
	jobs    map[uint64]*jobEntry
	running bool
}

// NewService creates a new scheduler service. The cron loop runs in the
// configured timezone.
func NewService(storage interfaces.StorageManager, monitor interfaces.MonitorService, eventService interfaces.EventService, config *common.SchedulerConfig, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		storage:      storage,
		monitor:      monitor,
		eventService: eventService,
		cron:         cron.New(cron.WithLocation(config.Location())),
		logger:       logger,
		jobs:         make(map[uint64]*jobEntry),
	}
}

// Start schedules all enabled targets and begins the cron loop. Target
// create/update/delete events trigger a reconcile so the job table
// follows the store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile failed: %w", err)
	}

	if s.eventService != nil {
		reconcile := func(ctx context.Context, event interfaces.Event) error {
			return s.Reconcile(ctx)
		}
		for _, eventType := range []interfaces.EventType{
			interfaces.EventTargetCreated,
			interfaces.EventTargetUpdated,
			interfaces.EventTargetDeleted,
		} {
			if err := s.eventService.Subscribe(eventType, reconcile); err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
			}
		}
	}

	s.cron.Start()
	s.logger.Info().Int("jobs", s.JobCount()).Msg("Scheduler started")
	return nil
}

// Reconcile diffs the job table against the store. Safe to call
// repeatedly; calling it twice in a row changes nothing.
func (s *Service) Reconcile(ctx context.Context) error {
	targets, err := s.storage.TargetStorage().ListEnabledTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled targets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[uint64]time.Duration, len(targets))
	for _, target := range targets {
		wanted[target.ID] = target.Interval()
	}

	added, replaced, removed := 0, 0, 0

	// Drop jobs for deleted or disabled targets
	for targetID, entry := range s.jobs {
		if _, ok := wanted[targetID]; !ok {
			s.cron.Remove(entry.cronID)
			delete(s.jobs, targetID)
			removed++
		}
	}

	// Add new jobs, replace jobs whose interval changed
	for targetID, interval := range wanted {
		entry, ok := s.jobs[targetID]
		if ok && entry.interval == interval {
			continue
		}
		if ok {
			s.cron.Remove(entry.cronID)
			delete(s.jobs, targetID)
			replaced++
		} else {
			added++
		}
		s.scheduleLocked(targetID, interval)
	}

	if added+replaced+removed > 0 {
		s.logger.Info().
			Int("added", added).
			Int("replaced", replaced).
			Int("removed", removed).
			Int("total", len(s.jobs)).
			Msg("Scheduler reconciled")
	}
	return nil
}

// scheduleLocked registers the cron entry for one target. Must be called
// with the mutex held.
func (s *Service) scheduleLocked(targetID uint64, interval time.Duration) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.runCheck(targetID)
	}))

	cronID := s.cron.Schedule(cron.Every(interval), job)
	s.jobs[targetID] = &jobEntry{
		targetID: targetID,
		interval: interval,
		cronID:   cronID,
	}

	s.logger.Debug().
		Int64("target_id", int64(targetID)).
		Str("interval", interval.String()).
		Msg("Target scheduled")
}

// runCheck is the cron firing body. Panics are contained here so one bad
// check cannot take down the cron loop.
func (s *Service) runCheck(targetID uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Int64("target_id", int64(targetID)).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("PANIC RECOVERED in scheduled check")
		}
	}()

	if _, err := s.monitor.RunCheck(context.Background(), targetID); err != nil {
		s.logger.Error().
			Err(err).
			Int64("target_id", int64(targetID)).
			Msg("Scheduled check failed")
	}
}

// Stop halts the cron loop and waits for in-flight checks, bounded by
// the caller's context.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out with checks still running")
	}
	return nil
}

// JobCount returns the number of scheduled targets.
func (s *Service) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
