package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DowntimeStorage implements the DowntimeStorage interface for Badger
type DowntimeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDowntimeStorage creates a new DowntimeStorage instance
func NewDowntimeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DowntimeStorage {
	return &DowntimeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DowntimeStorage) GetOpenWindow(ctx context.Context, targetID uint64) (*models.DowntimeWindow, error) {
	var windows []models.DowntimeWindow
	if err := s.db.Store().Find(&windows, badgerhold.Where("TargetID").Eq(targetID).And("EndedAt").IsNil()); err != nil {
		return nil, fmt.Errorf("failed to find open downtime window: %w", err)
	}
	if len(windows) == 0 {
		return nil, nil
	}
	return &windows[0], nil
}

// ListWindows returns windows overlapping [start, end), oldest first.
// Open windows overlap any range that extends past their start.
func (s *DowntimeStorage) ListWindows(ctx context.Context, targetID uint64, start, end time.Time) ([]*models.DowntimeWindow, error) {
	var windows []models.DowntimeWindow
	if err := s.db.Store().Find(&windows, badgerhold.Where("TargetID").Eq(targetID).And("StartedAt").Lt(end)); err != nil {
		return nil, fmt.Errorf("failed to list downtime windows: %w", err)
	}

	result := make([]*models.DowntimeWindow, 0, len(windows))
	for i := range windows {
		w := &windows[i]
		if w.EndedAt != nil && !w.EndedAt.After(start) {
			continue
		}
		result = append(result, w)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}
