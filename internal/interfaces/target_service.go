package interfaces

import (
	"context"

	"github.com/ternarybob/vigilo/internal/models"
)

// TargetService manages monitored targets
type TargetService interface {
	Create(ctx context.Context, input *models.TargetCreate) (*models.Target, error)
	Get(ctx context.Context, id uint64) (*models.Target, error)
	List(ctx context.Context) ([]*models.Target, error)

	// Update applies a patch; nil fields keep their current value.
	Update(ctx context.Context, id uint64, patch *models.TargetUpdate) (*models.Target, error)

	// Delete removes the target and all dependent records.
	Delete(ctx context.Context, id uint64) error
}
