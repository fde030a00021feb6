package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// WindowAction is the downtime decision applied alongside a check insert.
type WindowAction int

const (
	WindowNone WindowAction = iota
	WindowOpen
	WindowClose
)

// WindowDecider inspects the currently open downtime window (nil when the
// target is up) and the new check outcome and decides the transition. It
// runs inside the check-insert transaction and must be pure.
type WindowDecider func(open *models.DowntimeWindow, available bool) WindowAction

// TargetStorage - persistence for monitored targets
type TargetStorage interface {
	CreateTarget(ctx context.Context, target *models.Target) error
	GetTarget(ctx context.Context, id uint64) (*models.Target, error)
	GetTargetByURL(ctx context.Context, url string) (*models.Target, error)
	ListTargets(ctx context.Context) ([]*models.Target, error)
	ListEnabledTargets(ctx context.Context) ([]*models.Target, error)
	UpdateTarget(ctx context.Context, target *models.Target) error

	// DeleteTarget removes the target and cascades to its checks,
	// downtime windows and debug sessions.
	DeleteTarget(ctx context.Context, id uint64) error

	CountTargets(ctx context.Context) (int, error)
}

// CheckStorage - append-only check history
type CheckStorage interface {
	// RecordCheck inserts the check and applies the downtime transition
	// chosen by decide in one transaction. Returns the window the
	// decision acted on, if any.
	RecordCheck(ctx context.Context, check *models.Check, decide WindowDecider) (*models.DowntimeWindow, error)

	GetCheck(ctx context.Context, id uint64) (*models.Check, error)
	ListChecks(ctx context.Context, targetID uint64, start, end time.Time) ([]*models.Check, error)
	LatestCheck(ctx context.Context, targetID uint64) (*models.Check, error)
	CountChecks(ctx context.Context, targetID uint64) (int, error)
}

// DowntimeStorage - downtime window queries
type DowntimeStorage interface {
	GetOpenWindow(ctx context.Context, targetID uint64) (*models.DowntimeWindow, error)

	// ListWindows returns windows overlapping [start, end), oldest first.
	ListWindows(ctx context.Context, targetID uint64, start, end time.Time) ([]*models.DowntimeWindow, error)
}

// DebugStorage - debug sessions and their captured data
type DebugStorage interface {
	CreateSession(ctx context.Context, session *models.DebugSession) error
	GetSession(ctx context.Context, id uint64) (*models.DebugSession, error)
	ListSessions(ctx context.Context, targetID uint64) ([]*models.DebugSession, error)
	UpdateSession(ctx context.Context, session *models.DebugSession) error

	// ActiveSessionForTarget returns the non-terminal session for the
	// target, or nil when none exists.
	ActiveSessionForTarget(ctx context.Context, targetID uint64) (*models.DebugSession, error)

	// AppendCaptured persists a flush batch in one transaction.
	AppendCaptured(ctx context.Context, events []*models.NetworkEvent, messages []*models.ConsoleMessage) error

	ListNetworkEvents(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.NetworkEvent, error)
	ListConsoleMessages(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.ConsoleMessage, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	TargetStorage() TargetStorage
	CheckStorage() CheckStorage
	DowntimeStorage() DowntimeStorage
	DebugStorage() DebugStorage
	Close() error
}
