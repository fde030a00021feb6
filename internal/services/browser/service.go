package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// startupTimeout bounds the lazy browser launch and its smoke test.
const startupTimeout = 30 * time.Second

// Service manages the shared headless Chrome process. The allocator and
// browser context are started lazily on first Acquire; every caller gets
// an isolated child context off the shared browser.
type Service struct {
	mu              sync.Mutex
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	started         bool
	failed          bool
	config          *common.BrowserConfig
	userAgent       string
	logger          arbor.ILogger
}

// NewService creates the browser service. No Chrome process is launched
// until the first Acquire.
func NewService(config *common.BrowserConfig, userAgent string, logger arbor.ILogger) interfaces.BrowserService {
	return &Service{
		config:    config,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Acquire returns an isolated page context sharing the browser process.
// Callers must cancel the returned context when done.
func (s *Service) Acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStartedLocked(); err != nil {
		return nil, nil, err
	}

	pageCtx, pageCancel := chromedp.NewContext(s.browserCtx)
	return pageCtx, pageCancel, nil
}

// Healthy reports whether the shared browser is usable.
func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.failed {
		return false
	}
	return s.browserCtx.Err() == nil
}

// ensureStartedLocked launches the allocator and browser on first use and
// verifies them with an about:blank navigation. Must be called with the
// mutex held.
func (s *Service) ensureStartedLocked() error {
	if s.started && !s.failed {
		if s.browserCtx.Err() != nil {
			// Browser process died, reinitialize
			s.logger.Warn().Msg("Shared browser context is dead, reinitializing")
			s.shutdownLocked()
		} else {
			return nil
		}
	}
	s.failed = false

	if kind := s.config.Kind; kind != "" && kind != "chromium" {
		s.failed = true
		return fmt.Errorf("unsupported browser kind %q, only chromium is supported", kind)
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", s.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.userAgent),
	)
	if s.config.ExecutablePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(s.config.ExecutablePath))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, startupTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		s.failed = true
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	s.allocatorCtx = allocatorCtx
	s.allocatorCancel = allocatorCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.started = true

	s.logger.Info().
		Bool("headless", s.config.Headless).
		Str("startup_time", time.Since(startTime).String()).
		Msg("Shared browser started")

	return nil
}

// Shutdown closes the browser and allocator, bounded by a timeout so a
// wedged Chrome cannot hang process exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.shutdownLocked()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(startupTimeout):
		s.logger.Warn().Msg("Browser shutdown timed out")
	case <-ctx.Done():
		s.logger.Warn().Msg("Browser shutdown cancelled by context")
	}

	s.started = false
	s.logger.Info().Msg("Browser service shut down")
	return nil
}

// shutdownLocked cancels browser then allocator. Must be called with the
// mutex held.
func (s *Service) shutdownLocked() {
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
		s.allocatorCancel = nil
	}
	s.browserCtx = nil
	s.allocatorCtx = nil
	s.started = false
}
