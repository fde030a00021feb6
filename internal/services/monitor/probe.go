package monitor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// errRetryableConnect marks an attempt that may be retried.
var errRetryableConnect = errors.New("transient connect failure")

// HTTPProbe checks availability with a plain GET. Redirects are followed;
// availability is judged on the final response status.
type HTTPProbe struct {
	client        *http.Client
	userAgent     string
	retries       int
	retryInterval time.Duration
	logger        arbor.ILogger
}

// NewHTTPProbe creates an HTTP prober from config.
func NewHTTPProbe(config *common.ProbeConfig, logger arbor.ILogger) interfaces.Prober {
	return &HTTPProbe{
		client: &http.Client{
			// Per-attempt deadline comes from the probe context
			Timeout: 0,
		},
		userAgent:     config.UserAgent,
		retries:       config.Retries,
		retryInterval: config.RetryInterval,
		logger:        logger,
	}
}

// Probe runs the check within the given deadline. Connect failures are
// retried with constant backoff; HTTP status is never retried, an
// unavailable status is an answer, not an error.
func (p *HTTPProbe) Probe(ctx context.Context, target *models.Target, deadline time.Duration) *interfaces.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var result *interfaces.ProbeResult
	attempt := func() error {
		result = p.attempt(ctx, target.URL)
		if !result.Available && result.ErrorKind == models.ErrorKindConnect && ctx.Err() == nil {
			return errRetryableConnect
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryInterval), uint64(p.retries)),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil && result == nil {
		result = &interfaces.ProbeResult{
			Available:   false,
			ErrorKind:   models.ErrorKindUnexpected,
			ErrorDetail: err.Error(),
		}
	}

	return result
}

// attempt performs a single GET and maps the outcome.
func (p *HTTPProbe) attempt(ctx context.Context, url string) *interfaces.ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &interfaces.ProbeResult{
			Available:   false,
			ErrorKind:   models.ErrorKindProtocol,
			ErrorDetail: err.Error(),
		}
	}
	req.Header.Set("User-Agent", p.userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		kind := classifyProbeError(err)
		return &interfaces.ProbeResult{
			Available:   false,
			ErrorKind:   kind,
			ErrorDetail: err.Error(),
		}
	}
	// Response time is dispatch to headers, not body drain
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	status := resp.StatusCode
	available := status >= 200 && status < 400

	result := &interfaces.ProbeResult{
		Available:      available,
		StatusCode:     &status,
		ResponseTimeMs: &elapsed,
	}
	if !available {
		// An HTTP error status is a definitive answer from the target,
		// not a transport failure, so no error kind is set
		result.ErrorDetail = resp.Status
	}
	return result
}

// classifyProbeError maps transport errors onto check error kinds.
func classifyProbeError(err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorKindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.ErrorKindConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return models.ErrorKindConnect
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return models.ErrorKindProtocol
	}
	msg := err.Error()
	if strings.Contains(msg, "malformed") || strings.Contains(msg, "invalid header") {
		return models.ErrorKindProtocol
	}

	return models.ErrorKindUnexpected
}
