package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// minProbeFloor keeps the effective deadline from collapsing below a
// usable value for slow pages even at the shortest check interval.
const minProbeFloor = 30 * time.Second

// Service executes availability checks end to end.
type Service struct {
	storage interfaces.StorageManager
	prober  interfaces.Prober
	breaker interfaces.CircuitBreaker
	config  *common.ProbeConfig
	logger  arbor.ILogger
}

// NewService creates the monitor service.
func NewService(storage interfaces.StorageManager, prober interfaces.Prober, breaker interfaces.CircuitBreaker, config *common.ProbeConfig, logger arbor.ILogger) interfaces.MonitorService {
	return &Service{
		storage: storage,
		prober:  prober,
		breaker: breaker,
		config:  config,
		logger:  logger,
	}
}

// RunCheck probes one target and records the outcome together with any
// downtime transition. Returns nil without error when the run was
// skipped: breaker open, target deleted or target disabled.
func (s *Service) RunCheck(ctx context.Context, targetID uint64) (*models.Check, error) {
	if s.breaker.IsBlocked(targetID) {
		s.logger.Debug().Int64("target_id", int64(targetID)).Msg("Check suppressed by circuit breaker")
		return nil, nil
	}

	// Re-read so a delete or disable that raced the firing wins
	target, err := s.storage.TargetStorage().GetTarget(ctx, targetID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Debug().Int64("target_id", int64(targetID)).Msg("Target gone, skipping check")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load target %d: %w", targetID, err)
	}
	if !target.Enabled {
		s.logger.Debug().Int64("target_id", int64(targetID)).Msg("Target disabled, skipping check")
		return nil, nil
	}

	deadline := s.probeDeadline(target)
	result := s.prober.Probe(ctx, target, deadline)

	check := &models.Check{
		TargetID:       target.ID,
		CheckedAt:      time.Now().UTC(),
		Available:      result.Available,
		StatusCode:     result.StatusCode,
		ResponseTimeMs: result.ResponseTimeMs,
		ErrorKind:      result.ErrorKind,
		ErrorDetail:    result.ErrorDetail,
	}

	window, err := s.storage.CheckStorage().RecordCheck(ctx, check, DecideWindow)
	if err != nil {
		// A check that cannot be persisted counts against the breaker
		s.breaker.RecordFailure(target.ID)
		return nil, fmt.Errorf("failed to record check for target %d: %w", targetID, err)
	}

	if result.Available {
		s.breaker.RecordSuccess(target.ID)
	} else {
		s.breaker.RecordFailure(target.ID)
	}

	s.logCheck(target, check, window)
	return check, nil
}

// probeDeadline bounds the probe so a slow target cannot overlap its own
// next firing: min(configured timeout, max(interval-1s, floor)).
func (s *Service) probeDeadline(target *models.Target) time.Duration {
	deadline := time.Duration(s.config.TimeoutSeconds) * time.Second

	intervalBound := target.Interval() - time.Second
	if intervalBound < minProbeFloor {
		intervalBound = minProbeFloor
	}
	if deadline > intervalBound || deadline <= 0 {
		deadline = intervalBound
	}
	return deadline
}

func (s *Service) logCheck(target *models.Target, check *models.Check, window *models.DowntimeWindow) {
	event := s.logger.Debug()
	transition := ""
	switch {
	case window != nil && check.Available && window.EndedAt != nil:
		event = s.logger.Info()
		transition = "recovered"
	case window != nil && !check.Available && window.EndedAt == nil && window.StartedAt.Equal(check.CheckedAt):
		event = s.logger.Warn()
		transition = "down"
	case !check.Available:
		event = s.logger.Warn()
	}

	e := event.
		Int64("target_id", int64(target.ID)).
		Str("url", target.URL).
		Bool("available", check.Available)
	if check.StatusCode != nil {
		e = e.Int("status", *check.StatusCode)
	}
	if check.ResponseTimeMs != nil {
		e = e.Float64("response_ms", *check.ResponseTimeMs)
	}
	if check.ErrorKind != models.ErrorKindNone {
		e = e.Str("error_kind", string(check.ErrorKind))
	}
	if transition != "" {
		e = e.Str("transition", transition)
	}
	e.Msg("Check recorded")
}
