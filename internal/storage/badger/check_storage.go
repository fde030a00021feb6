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

// CheckStorage implements the CheckStorage interface for Badger
type CheckStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCheckStorage creates a new CheckStorage instance
func NewCheckStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CheckStorage {
	return &CheckStorage{
		db:     db,
		logger: logger,
	}
}

// RecordCheck inserts the check and applies the downtime transition from
// decide inside a single badger transaction. Crash between the two writes
// is therefore impossible: either both land or neither does.
func (s *CheckStorage) RecordCheck(ctx context.Context, check *models.Check, decide interfaces.WindowDecider) (*models.DowntimeWindow, error) {
	if check.CheckedAt.IsZero() {
		check.CheckedAt = time.Now().UTC()
	}

	checkID, err := s.db.NextID("check")
	if err != nil {
		return nil, err
	}
	check.ID = checkID

	store := s.db.Store()
	var acted *models.DowntimeWindow

	err = store.Badger().Update(func(tx *badgerdb.Txn) error {
		var open []models.DowntimeWindow
		if err := store.TxFind(tx, &open, badgerhold.Where("TargetID").Eq(check.TargetID).And("EndedAt").IsNil()); err != nil {
			return fmt.Errorf("failed to find open downtime window: %w", err)
		}

		var openWindow *models.DowntimeWindow
		if len(open) > 0 {
			openWindow = &open[0]
		}

		if err := store.TxInsert(tx, check.ID, check); err != nil {
			return fmt.Errorf("failed to insert check: %w", err)
		}

		switch decide(openWindow, check.Available) {
		case interfaces.WindowOpen:
			windowID, err := s.db.NextID("downtime")
			if err != nil {
				return err
			}
			window := &models.DowntimeWindow{
				ID:        windowID,
				TargetID:  check.TargetID,
				StartedAt: check.CheckedAt,
			}
			if err := store.TxInsert(tx, window.ID, window); err != nil {
				return fmt.Errorf("failed to open downtime window: %w", err)
			}
			acted = window

		case interfaces.WindowClose:
			endedAt := check.CheckedAt
			openWindow.EndedAt = &endedAt
			if err := store.TxUpdate(tx, openWindow.ID, openWindow); err != nil {
				return fmt.Errorf("failed to close downtime window: %w", err)
			}
			acted = openWindow

		case interfaces.WindowNone:
			acted = openWindow
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return acted, nil
}

func (s *CheckStorage) GetCheck(ctx context.Context, id uint64) (*models.Check, error) {
	var check models.Check
	if err := s.db.Store().Get(id, &check); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("check %d: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get check: %w", err)
	}
	return &check, nil
}

// ListChecks returns checks in [start, end) ordered oldest first.
func (s *CheckStorage) ListChecks(ctx context.Context, targetID uint64, start, end time.Time) ([]*models.Check, error) {
	var checks []models.Check
	query := badgerhold.Where("TargetID").Eq(targetID).
		And("CheckedAt").Ge(start).
		And("CheckedAt").Lt(end).
		SortBy("CheckedAt")
	if err := s.db.Store().Find(&checks, query); err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}

	result := make([]*models.Check, len(checks))
	for i := range checks {
		result[i] = &checks[i]
	}
	return result, nil
}

func (s *CheckStorage) LatestCheck(ctx context.Context, targetID uint64) (*models.Check, error) {
	var checks []models.Check
	query := badgerhold.Where("TargetID").Eq(targetID).SortBy("CheckedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&checks, query); err != nil {
		return nil, fmt.Errorf("failed to find latest check: %w", err)
	}
	if len(checks) == 0 {
		return nil, nil
	}
	return &checks[0], nil
}

func (s *CheckStorage) CountChecks(ctx context.Context, targetID uint64) (int, error) {
	count, err := s.db.Store().Count(&models.Check{}, badgerhold.Where("TargetID").Eq(targetID))
	if err != nil {
		return 0, fmt.Errorf("failed to count checks: %w", err)
	}
	return int(count), nil
}
