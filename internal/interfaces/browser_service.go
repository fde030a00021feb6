package interfaces

import "context"

// BrowserService vends isolated chromedp page contexts off a shared
// headless browser process.
type BrowserService interface {
	// Acquire returns a fresh page context and its release function.
	// The allocator and browser are started lazily on first use.
	Acquire(ctx context.Context) (context.Context, context.CancelFunc, error)

	// Healthy reports whether the shared browser is usable.
	Healthy() bool

	// Shutdown closes the browser and allocator.
	Shutdown(ctx context.Context) error
}
