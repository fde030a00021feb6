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

// TargetStorage implements the TargetStorage interface for Badger
type TargetStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTargetStorage creates a new TargetStorage instance
func NewTargetStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TargetStorage {
	return &TargetStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TargetStorage) CreateTarget(ctx context.Context, target *models.Target) error {
	id, err := s.db.NextID("target")
	if err != nil {
		return err
	}
	target.ID = id

	now := time.Now().UTC()
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	target.UpdatedAt = now

	if err := s.db.Store().Insert(target.ID, target); err != nil {
		if errors.Is(err, badgerhold.ErrUniqueExists) {
			return fmt.Errorf("target url %s already exists: %w", target.URL, interfaces.ErrConflict)
		}
		return fmt.Errorf("failed to insert target: %w", err)
	}
	return nil
}

func (s *TargetStorage) GetTarget(ctx context.Context, id uint64) (*models.Target, error) {
	var target models.Target
	if err := s.db.Store().Get(id, &target); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("target %d: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &target, nil
}

func (s *TargetStorage) GetTargetByURL(ctx context.Context, url string) (*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("URL").Eq(url)); err != nil {
		return nil, fmt.Errorf("failed to find target by url: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("target url %s: %w", url, interfaces.ErrNotFound)
	}
	return &targets[0], nil
}

func (s *TargetStorage) ListTargets(ctx context.Context) ([]*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("ID").Gt(uint64(0)).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	result := make([]*models.Target, len(targets))
	for i := range targets {
		result[i] = &targets[i]
	}
	return result, nil
}

func (s *TargetStorage) ListEnabledTargets(ctx context.Context) ([]*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("Enabled").Eq(true).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list enabled targets: %w", err)
	}

	result := make([]*models.Target, len(targets))
	for i := range targets {
		result[i] = &targets[i]
	}
	return result, nil
}

func (s *TargetStorage) UpdateTarget(ctx context.Context, target *models.Target) error {
	target.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Update(target.ID, target); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("target %d: %w", target.ID, interfaces.ErrNotFound)
		}
		if errors.Is(err, badgerhold.ErrUniqueExists) {
			return fmt.Errorf("target url %s already exists: %w", target.URL, interfaces.ErrConflict)
		}
		return fmt.Errorf("failed to update target: %w", err)
	}
	return nil
}

// DeleteTarget removes the target and cascades to checks, downtime
// windows, debug sessions and their captured data. The whole cascade
// runs in one badger transaction: either everything goes or nothing
// does, so a failure mid-delete cannot strand orphaned records.
func (s *TargetStorage) DeleteTarget(ctx context.Context, id uint64) error {
	store := s.db.Store()
	sessions := 0

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := store.TxDelete(tx, id, &models.Target{}); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("target %d: %w", id, interfaces.ErrNotFound)
			}
			return fmt.Errorf("failed to delete target: %w", err)
		}

		if err := store.TxDeleteMatching(tx, &models.Check{}, badgerhold.Where("TargetID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete checks for target %d: %w", id, err)
		}
		if err := store.TxDeleteMatching(tx, &models.DowntimeWindow{}, badgerhold.Where("TargetID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete downtime windows for target %d: %w", id, err)
		}

		var found []models.DebugSession
		if err := store.TxFind(tx, &found, badgerhold.Where("TargetID").Eq(id)); err != nil {
			return fmt.Errorf("failed to find debug sessions for target %d: %w", id, err)
		}
		for i := range found {
			sid := found[i].ID
			if err := store.TxDeleteMatching(tx, &models.NetworkEvent{}, badgerhold.Where("SessionID").Eq(sid)); err != nil {
				return fmt.Errorf("failed to delete network events for session %d: %w", sid, err)
			}
			if err := store.TxDeleteMatching(tx, &models.ConsoleMessage{}, badgerhold.Where("SessionID").Eq(sid)); err != nil {
				return fmt.Errorf("failed to delete console messages for session %d: %w", sid, err)
			}
		}
		if err := store.TxDeleteMatching(tx, &models.DebugSession{}, badgerhold.Where("TargetID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete debug sessions for target %d: %w", id, err)
		}

		sessions = len(found)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Int64("target_id", int64(id)).Int("sessions", sessions).Msg("Target deleted with dependent records")
	return nil
}

func (s *TargetStorage) CountTargets(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Target{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	return int(count), nil
}
