package debug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// Service implements DebugService. It owns the registry of running
// captures; everything else lives in storage.
type Service struct {
	storage     interfaces.StorageManager
	browser     interfaces.BrowserService
	broadcaster interfaces.BroadcastService
	config      *common.DebugConfig
	logger      arbor.ILogger

	mu       sync.Mutex
	active   map[uint64]*activeSession
	byTarget map[uint64]*activeSession
}

// NewService creates a new debug service
func NewService(storage interfaces.StorageManager, browser interfaces.BrowserService, broadcaster interfaces.BroadcastService, config *common.DebugConfig, logger arbor.ILogger) interfaces.DebugService {
	return &Service{
		storage:     storage,
		browser:     browser,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger,
		active:      make(map[uint64]*activeSession),
		byTarget:    make(map[uint64]*activeSession),
	}
}

// CreateSession registers a pending session. The target must exist and
// must not already have a non-terminal session.
func (s *Service) CreateSession(ctx context.Context, input *models.DebugSessionCreate) (*models.DebugSession, error) {
	if _, err := s.storage.TargetStorage().GetTarget(ctx, input.TargetID); err != nil {
		return nil, err
	}

	existing, err := s.storage.DebugStorage().ActiveSessionForTarget(ctx, input.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active session: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("target %d already has session %d in state %s: %w",
			input.TargetID, existing.ID, existing.Status, interfaces.ErrConflict)
	}

	limit := s.config.DefaultDurationSeconds
	if input.DurationLimitSeconds != nil {
		limit = *input.DurationLimitSeconds
	}
	if limit <= 0 {
		return nil, fmt.Errorf("duration limit must be positive: %w", interfaces.ErrInvalid)
	}
	if s.config.MaxDurationSeconds > 0 && limit > s.config.MaxDurationSeconds {
		limit = s.config.MaxDurationSeconds
	}

	session := &models.DebugSession{
		TargetID:             input.TargetID,
		Status:               models.SessionStatusPending,
		DurationLimitSeconds: &limit,
	}
	if err := s.storage.DebugStorage().CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("session_id", int64(session.ID)).
		Int64("target_id", int64(session.TargetID)).
		Int("duration_limit_s", limit).
		Msg("Debug session created")
	return session, nil
}

// StartSession opens the capture page, navigates it to the target and
// begins buffering. Only a pending session can be started.
func (s *Service) StartSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error) {
	session, err := s.storage.DebugStorage().GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusPending {
		return nil, fmt.Errorf("session %d is %s, only pending sessions can start: %w",
			sessionID, session.Status, interfaces.ErrConflict)
	}

	target, err := s.storage.TargetStorage().GetTarget(ctx, session.TargetID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, s.failSession(ctx, session, "target no longer exists")
		}
		return nil, err
	}

	pageCtx, pageCancel, err := s.browser.Acquire(ctx)
	if err != nil {
		return nil, s.failSession(ctx, session, fmt.Sprintf("browser unavailable: %v", err))
	}

	as := newActiveSession(session, s.storage.DebugStorage(), s.broadcaster, s.config, s.logger, s.sessionDone)
	if err := as.start(pageCtx, pageCancel); err != nil {
		return nil, s.failSession(ctx, session, err.Error())
	}

	now := time.Now().UTC()
	session.Status = models.SessionStatusActive
	session.StartedAt = &now
	if err := s.storage.DebugStorage().UpdateSession(ctx, session); err != nil {
		as.finish(models.SessionStatusFailed, "failed to persist activation")
		return nil, err
	}

	s.mu.Lock()
	s.active[session.ID] = as
	s.byTarget[session.TargetID] = as
	s.mu.Unlock()

	// Initial navigation so the capture has content before the first
	// scheduled probe routes through. A failed load is itself capture
	// material, not a reason to tear the session down.
	if status, err := as.Navigate(ctx, target.URL); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("session_id", int64(session.ID)).
			Str("url", target.URL).
			Msg("Initial session navigation failed")
	} else {
		s.logger.Info().
			Int64("session_id", int64(session.ID)).
			Str("url", target.URL).
			Int("status", status).
			Msg("Debug session started")
	}

	return session, nil
}

// StopSession finalises the session. A running capture gets a final
// flush; a pending session is closed directly.
func (s *Service) StopSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error) {
	s.mu.Lock()
	as, running := s.active[sessionID]
	s.mu.Unlock()

	if running {
		as.finish(models.SessionStatusStopped, "")
		return s.storage.DebugStorage().GetSession(ctx, sessionID)
	}

	session, err := s.storage.DebugStorage().GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionStatusPending:
		now := time.Now().UTC()
		session.Status = models.SessionStatusStopped
		session.StoppedAt = &now
		if err := s.storage.DebugStorage().UpdateSession(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	case models.SessionStatusActive:
		// Marked active in storage but not in the registry, the process
		// restarted underneath it. Close it out as failed.
		return nil, s.failSession(ctx, session, "capture lost on restart")
	default:
		return nil, fmt.Errorf("session %d already %s: %w", sessionID, session.Status, interfaces.ErrNotActive)
	}
}

func (s *Service) GetSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error) {
	return s.storage.DebugStorage().GetSession(ctx, sessionID)
}

func (s *Service) ListSessions(ctx context.Context, targetID uint64) ([]*models.DebugSession, error) {
	return s.storage.DebugStorage().ListSessions(ctx, targetID)
}

func (s *Service) ListNetworkEvents(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.NetworkEvent, error) {
	return s.storage.DebugStorage().ListNetworkEvents(ctx, sessionID, limit, offset)
}

func (s *Service) ListConsoleMessages(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.ConsoleMessage, error) {
	return s.storage.DebugStorage().ListConsoleMessages(ctx, sessionID, limit, offset)
}

// ActiveSessionForTarget returns the running capture for the target so
// probes route through its page, or nil when none is running.
func (s *Service) ActiveSessionForTarget(targetID uint64) interfaces.DebugCapture {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.byTarget[targetID]
	if !ok {
		return nil
	}
	return as
}

// Shutdown stops every running capture.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*activeSession, 0, len(s.active))
	for _, as := range s.active {
		sessions = append(sessions, as)
	}
	s.mu.Unlock()

	for _, as := range sessions {
		as.finish(models.SessionStatusStopped, "")
	}

	if len(sessions) > 0 {
		s.logger.Info().Int("sessions", len(sessions)).Msg("Debug sessions stopped on shutdown")
	}
	return nil
}

// sessionDone removes a finished capture from the registry. Called by
// the session itself after it reaches a terminal state.
func (s *Service) sessionDone(session *models.DebugSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, session.ID)
	if current, ok := s.byTarget[session.TargetID]; ok && current.session.ID == session.ID {
		delete(s.byTarget, session.TargetID)
	}
}

// failSession persists a failed terminal state and returns the error the
// caller should surface.
func (s *Service) failSession(ctx context.Context, session *models.DebugSession, detail string) error {
	now := time.Now().UTC()
	session.Status = models.SessionStatusFailed
	session.StoppedAt = &now
	session.ErrorDetail = detail
	if err := s.storage.DebugStorage().UpdateSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("session_id", int64(session.ID)).Msg("Failed to persist session failure")
	}
	return fmt.Errorf("debug session %d failed: %s", session.ID, detail)
}
