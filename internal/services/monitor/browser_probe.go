package monitor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// SessionRouter resolves the running debug capture for a target, if any.
// Probes routed through a capture land their traffic in the session
// buffers instead of a throwaway page.
type SessionRouter interface {
	ActiveSessionForTarget(targetID uint64) interfaces.DebugCapture
}

// BrowserProbe checks availability by loading the page in headless
// Chrome. Availability is judged on the main document response status.
type BrowserProbe struct {
	browser interfaces.BrowserService
	router  SessionRouter
	logger  arbor.ILogger
}

// NewBrowserProbe creates a browser prober. router may be nil when no
// debug engine is wired.
func NewBrowserProbe(browser interfaces.BrowserService, router SessionRouter, logger arbor.ILogger) interfaces.Prober {
	return &BrowserProbe{
		browser: browser,
		router:  router,
		logger:  logger,
	}
}

func (p *BrowserProbe) Probe(ctx context.Context, target *models.Target, deadline time.Duration) *interfaces.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if p.router != nil {
		if capture := p.router.ActiveSessionForTarget(target.ID); capture != nil {
			return p.probeThroughSession(ctx, capture, target)
		}
	}

	pageCtx, pageCancel, err := p.browser.Acquire(ctx)
	if err != nil {
		return &interfaces.ProbeResult{
			Available:   false,
			ErrorKind:   models.ErrorKindUnexpected,
			ErrorDetail: err.Error(),
		}
	}
	defer pageCancel()

	navCtx, navCancel := context.WithCancel(pageCtx)
	defer navCancel()
	go func() {
		<-ctx.Done()
		navCancel()
	}()

	// The main document status arrives on the CDP event stream, not from
	// chromedp.Navigate
	var mu sync.Mutex
	status := 0
	chromedp.ListenTarget(navCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument {
				mu.Lock()
				if status == 0 {
					status = int(resp.Response.Status)
				}
				mu.Unlock()
			}
		}
	})

	start := time.Now()
	err = chromedp.Run(navCtx, network.Enable(), chromedp.Navigate(target.URL))
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	mu.Lock()
	observed := status
	mu.Unlock()

	return buildNavigationResult(ctx, observed, elapsed, err)
}

// probeThroughSession reuses the active debug session's page so the
// navigation traffic is captured.
func (p *BrowserProbe) probeThroughSession(ctx context.Context, capture interfaces.DebugCapture, target *models.Target) *interfaces.ProbeResult {
	p.logger.Debug().
		Int64("target_id", int64(target.ID)).
		Int64("session_id", int64(capture.SessionID())).
		Msg("Routing probe through active debug session")

	start := time.Now()
	status, err := capture.Navigate(ctx, target.URL)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	return buildNavigationResult(ctx, status, elapsed, err)
}

// buildNavigationResult maps a browser navigation outcome onto a probe
// result.
func buildNavigationResult(ctx context.Context, status int, elapsedMs float64, err error) *interfaces.ProbeResult {
	if err != nil {
		kind := models.ErrorKindNavigation
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = models.ErrorKindTimeout
		}
		return &interfaces.ProbeResult{
			Available:   false,
			ErrorKind:   kind,
			ErrorDetail: err.Error(),
		}
	}

	if status == 0 {
		return &interfaces.ProbeResult{
			Available:      false,
			ResponseTimeMs: &elapsedMs,
			ErrorKind:      models.ErrorKindNavigation,
			ErrorDetail:    "no document response observed",
		}
	}

	available := status >= 200 && status < 400
	result := &interfaces.ProbeResult{
		Available:      available,
		StatusCode:     &status,
		ResponseTimeMs: &elapsedMs,
	}
	if !available {
		result.ErrorDetail = "document status " + strconv.Itoa(status)
	}
	return result
}
