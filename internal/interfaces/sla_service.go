package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// SLAService computes availability and response-time analytics from the
// stored check history and downtime windows.
type SLAService interface {
	// Metrics computes point metrics for [start, end).
	Metrics(ctx context.Context, targetID uint64, start, end time.Time) (*models.SLAMetrics, error)

	// Report computes point metrics plus calendar-aligned buckets.
	Report(ctx context.Context, targetID uint64, start, end time.Time, bucket models.BucketSize) (*models.SLAReport, error)

	// ClearCache drops all cached results.
	ClearCache()
}
