package interfaces

import (
	"context"

	"github.com/ternarybob/vigilo/internal/models"
)

// DebugService manages browser debug-capture sessions. At most one
// non-terminal session exists per target.
type DebugService interface {
	// CreateSession registers a pending session for the target.
	CreateSession(ctx context.Context, input *models.DebugSessionCreate) (*models.DebugSession, error)

	// StartSession opens the browser page and begins capture. Only a
	// pending session can be started.
	StartSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error)

	// StopSession flushes remaining capture and finalises the session.
	StopSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error)

	GetSession(ctx context.Context, sessionID uint64) (*models.DebugSession, error)
	ListSessions(ctx context.Context, targetID uint64) ([]*models.DebugSession, error)

	ListNetworkEvents(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.NetworkEvent, error)
	ListConsoleMessages(ctx context.Context, sessionID uint64, limit, offset int) ([]*models.ConsoleMessage, error)

	// ActiveSessionForTarget returns the running capture for the target
	// so probes can route through its page, or nil when none.
	ActiveSessionForTarget(targetID uint64) DebugCapture

	// Shutdown stops all running sessions.
	Shutdown(ctx context.Context) error
}

// DebugCapture is the surface a running session exposes to the monitor:
// navigations executed through it land in the session's capture buffers.
type DebugCapture interface {
	SessionID() uint64

	// Navigate loads the URL in the session page and returns the main
	// document status code.
	Navigate(ctx context.Context, url string) (int, error)
}
