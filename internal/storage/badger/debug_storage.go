package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DebugStorage implements the DebugStorage interface for Badger
type DebugStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDebugStorage creates a new DebugStorage instance
func NewDebugStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DebugStorage {
	return &DebugStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DebugStorage) CreateSession(ctx context.Context, session *models.DebugSession) error {
	id, err := s.db.NextID("debug_session")
	if err != nil {
		return err
	}
	session.ID = id

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusPending
	}

	if err := s.db.Store().Insert(session.ID, session); err != nil {
		return fmt.Errorf("failed to insert debug session: %w", err)
	}
	return nil
}

func (s *DebugStorage) GetSession(ctx context.Context, id uint64) (*models.DebugSession, error) {
	var session models.DebugSession
	if err := s.db.Store().Get(id, &session); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("debug session %d: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get debug session: %w", err)
	}
	return &session, nil
}

// ListSessions returns sessions for the target, newest first. targetID 0
// lists across all targets.
func (s *DebugStorage) ListSessions(ctx context.Context, targetID uint64) ([]*models.DebugSession, error) {
	var sessions []models.DebugSession
	query := badgerhold.Where("ID").Gt(uint64(0))
	if targetID != 0 {
		query = badgerhold.Where("TargetID").Eq(targetID)
	}
	if err := s.db.Store().Find(&sessions, query.SortBy("ID").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list debug sessions: %w", err)
	}

	result := make([]*models.DebugSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *DebugStorage) UpdateSession(ctx context.Context, session *models.DebugSession) error {
	if err := s.db.Store().Update(session.ID, session); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("debug session %d: %w", session.ID, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to update debug session: %w", err)
	}
	return nil
}

func (s *DebugStorage) ActiveSessionForTarget(ctx context.Context, targetID uint64) (*models.DebugSession, error) {
	var sessions []models.DebugSession
	query := badgerhold.Where("TargetID").Eq(targetID).
		And("Status").In(models.SessionStatusPending, models.SessionStatusActive)
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to find active debug session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// AppendCaptured persists one flush batch in a single transaction so a
// partially written batch can never be observed.
func (s *DebugStorage) AppendCaptured(ctx context.Context, events []*models.NetworkEvent, messages []*models.ConsoleMessage) error {
	if len(events) == 0 && len(messages) == 0 {
		return nil
	}

	store := s.db.Store()

	for _, event := range events {
		id, err := s.db.NextID("network_event")
		if err != nil {
			return err
		}
		event.ID = id
	}
	for _, msg := range messages {
		id, err := s.db.NextID("console_message")
		if err != nil {
			return err
		}
		msg.ID = id
	}

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, event := range events {
			if err := store.TxInsert(tx, event.ID, event); err != nil {
				return fmt.Errorf("failed to insert network event: %w", err)
			}
		}
		for _, msg := range messages {
			if err := store.TxInsert(tx, msg.ID, msg); err != nil {
				return fmt.Errorf("failed to insert console message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Int("events", len(events)).Int("messages", len(messages)).Msg("Captured batch persisted")
	return nil
}

func (s *DebugStorage) ListNetworkEvents(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.NetworkEvent, error) {
	var events []models.NetworkEvent
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("ID")
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&events, query); err != nil {
		return nil, fmt.Errorf("failed to list network events: %w", err)
	}

	result := make([]*models.NetworkEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}

func (s *DebugStorage) ListConsoleMessages(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.ConsoleMessage, error) {
	var messages []models.ConsoleMessage
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("ID")
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to list console messages: %w", err)
	}

	result := make([]*models.ConsoleMessage, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result, nil
}
