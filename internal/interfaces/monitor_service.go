package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// ProbeResult is the raw outcome of one availability probe, before it is
// persisted as a Check.
type ProbeResult struct {
	Available      bool
	StatusCode     *int
	ResponseTimeMs *float64
	ErrorKind      models.ErrorKind
	ErrorDetail    string
}

// Prober performs a single availability probe against a target URL.
type Prober interface {
	Probe(ctx context.Context, target *models.Target, deadline time.Duration) *ProbeResult
}

// CircuitBreaker gates probing of persistently failing targets. All state
// is in memory and per target.
type CircuitBreaker interface {
	// IsBlocked reports whether checks for the target are suppressed.
	// An expired block clears itself on inspection.
	IsBlocked(targetID uint64) bool

	RecordSuccess(targetID uint64)
	RecordFailure(targetID uint64)

	// Forget drops all breaker state for the target.
	Forget(targetID uint64)
}

// MonitorService executes checks end to end: breaker gate, probe,
// persistence and downtime transition.
type MonitorService interface {
	// RunCheck probes the target and records the outcome. Returns the
	// persisted check, or nil when the breaker suppressed the run.
	RunCheck(ctx context.Context, targetID uint64) (*models.Check, error)
}
