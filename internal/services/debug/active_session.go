package debug

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// bodyFetchTimeout bounds the best-effort GetResponseBody call.
const bodyFetchTimeout = 5 * time.Second

// pendingRequest correlates a response with its request for duration.
type pendingRequest struct {
	sentAt time.Time
}

// activeSession owns one live capture: a dedicated browser page, CDP
// listeners feeding in-memory buffers, and a flush loop persisting and
// broadcasting them. All capture state is guarded by mu.
type activeSession struct {
	session     *models.DebugSession
	storage     interfaces.DebugStorage
	broadcaster interfaces.BroadcastService
	config      *common.DebugConfig
	logger      arbor.ILogger

	pageCtx    context.Context
	pageCancel context.CancelFunc

	mu            sync.Mutex
	stopped       bool
	events        []*models.NetworkEvent
	messages      []*models.ConsoleMessage
	requests      map[network.RequestID]pendingRequest
	pendingBody   map[*models.NetworkEvent]struct{}
	lastDocStatus int

	deadline *time.Timer
	flushWG  sync.WaitGroup
	bodyWG   sync.WaitGroup
	stopFlsh chan struct{}
	stopOnce sync.Once

	// onDone is called exactly once after the session reaches a terminal
	// state, with the final record.
	onDone func(*models.DebugSession)
}

func newActiveSession(session *models.DebugSession, storage interfaces.DebugStorage, broadcaster interfaces.BroadcastService, config *common.DebugConfig, logger arbor.ILogger, onDone func(*models.DebugSession)) *activeSession {
	return &activeSession{
		session:     session,
		storage:     storage,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger,
		requests:    make(map[network.RequestID]pendingRequest),
		pendingBody: make(map[*models.NetworkEvent]struct{}),
		stopFlsh:    make(chan struct{}),
		onDone:      onDone,
	}
}

// start attaches the CDP listeners to the page, enables the required
// domains and launches the flush loop and duration timer.
func (s *activeSession) start(pageCtx context.Context, pageCancel context.CancelFunc) error {
	s.pageCtx = pageCtx
	s.pageCancel = pageCancel

	chromedp.ListenTarget(pageCtx, s.handleEvent)

	if err := chromedp.Run(pageCtx, network.Enable(), cdplog.Enable(), cdpruntime.Enable()); err != nil {
		pageCancel()
		return fmt.Errorf("failed to enable capture domains: %w", err)
	}

	if s.session.DurationLimitSeconds != nil {
		limit := time.Duration(*s.session.DurationLimitSeconds) * time.Second
		s.deadline = time.AfterFunc(limit, func() {
			s.logger.Info().
				Int64("session_id", int64(s.session.ID)).
				Str("limit", limit.String()).
				Msg("Debug session hit duration limit")
			s.finish(models.SessionStatusTimeout, "duration limit reached")
		})
	}

	s.flushWG.Add(1)
	go s.flushLoop()
	return nil
}

// SessionID implements DebugCapture.
func (s *activeSession) SessionID() uint64 {
	return s.session.ID
}

// Navigate loads the URL in the capture page and reports the main
// document status. Everything the page does during the navigation lands
// in the capture buffers through the listeners.
func (s *activeSession) Navigate(ctx context.Context, url string) (int, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, fmt.Errorf("debug session %d: %w", s.session.ID, interfaces.ErrNotActive)
	}
	s.lastDocStatus = 0
	s.mu.Unlock()

	navCtx, navCancel := context.WithCancel(s.pageCtx)
	defer navCancel()
	go func() {
		select {
		case <-ctx.Done():
			navCancel()
		case <-navCtx.Done():
		}
	}()

	err := chromedp.Run(navCtx, chromedp.Navigate(url))

	s.mu.Lock()
	status := s.lastDocStatus
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return status, err
	}
	return status, nil
}

// handleEvent is the CDP listener body. It runs on chromedp's event
// goroutine, so it must never block and must contain its own panics.
func (s *activeSession) handleEvent(ev interface{}) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Int64("session_id", int64(s.session.ID)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in capture listener")
		}
	}()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.onRequest(ev)
	case *network.EventResponseReceived:
		s.onResponse(ev)
	case *cdpruntime.EventConsoleAPICalled:
		s.onConsoleAPI(ev)
	case *cdplog.EventEntryAdded:
		s.onLogEntry(ev)
	}
}

func (s *activeSession) onRequest(ev *network.EventRequestWillBeSent) {
	record := &models.NetworkEvent{
		SessionID:      s.session.ID,
		Kind:           models.NetworkEventRequest,
		URL:            ev.Request.URL,
		Method:         ev.Request.Method,
		RequestHeaders: marshalHeaders(ev.Request.Headers),
		ResourceType:   string(ev.Type),
		Timestamp:      ev.WallTime.Time().UTC(),
	}
	if body := requestPostData(ev.Request); body != "" {
		record.RequestBody, record.BodyTruncated = common.TruncateBytes(body, s.config.BodyByteLimit)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.requests[ev.RequestID] = pendingRequest{sentAt: ev.Timestamp.Time()}
	s.events = append(s.events, record)
	s.mu.Unlock()
}

func (s *activeSession) onResponse(ev *network.EventResponseReceived) {
	record := &models.NetworkEvent{
		SessionID:       s.session.ID,
		Kind:            models.NetworkEventResponse,
		URL:             ev.Response.URL,
		StatusCode:      int(ev.Response.Status),
		ResponseHeaders: marshalHeaders(ev.Response.Headers),
		ResourceType:    string(ev.Type),
		Timestamp:       time.Now().UTC(),
	}

	wantBody := capturableBody(ev.Response.MimeType)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if pending, ok := s.requests[ev.RequestID]; ok {
		delete(s.requests, ev.RequestID)
		ms := ev.Timestamp.Time().Sub(pending.sentAt).Seconds() * 1000
		if ms >= 0 {
			record.DurationMs = &ms
		}
	}
	if ev.Type == network.ResourceTypeDocument {
		s.lastDocStatus = int(ev.Response.Status)
	}
	// The record takes its buffer slot now so subscribers see events in
	// capture order; the body fetch backfills it in place.
	s.events = append(s.events, record)
	if wantBody {
		s.pendingBody[record] = struct{}{}
		s.bodyWG.Add(1)
	}
	s.mu.Unlock()

	if wantBody {
		go s.fetchBody(ev.RequestID, record)
	}
}

// fetchBody pulls the response body over CDP, truncates it to the
// configured budget and releases the already-buffered record for
// flushing. Fetch failures are expected for evicted or redirected
// responses; the record keeps its slot without a body.
func (s *activeSession) fetchBody(requestID network.RequestID, record *models.NetworkEvent) {
	defer s.bodyWG.Done()

	fetchCtx, cancel := context.WithTimeout(s.pageCtx, bodyFetchTimeout)
	defer cancel()

	var body []byte
	err := chromedp.Run(fetchCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(requestID).Do(ctx)
		return err
	}))

	s.mu.Lock()
	if err == nil && len(body) > 0 {
		record.ResponseBody, record.BodyTruncated = common.TruncateBytes(string(body), s.config.BodyByteLimit)
	}
	delete(s.pendingBody, record)
	s.mu.Unlock()
}

func (s *activeSession) onConsoleAPI(ev *cdpruntime.EventConsoleAPICalled) {
	var level models.ConsoleLevel
	switch ev.Type {
	case cdpruntime.APITypeError, cdpruntime.APITypeAssert:
		level = models.ConsoleLevelError
	case cdpruntime.APITypeWarning:
		level = models.ConsoleLevelWarning
	default:
		return
	}

	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			parts = append(parts, string(arg.Value))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}

	s.bufferMessage(&models.ConsoleMessage{
		SessionID: s.session.ID,
		Level:     level,
		Message:   strings.Join(parts, " "),
		Timestamp: time.Now().UTC(),
	})
}

func (s *activeSession) onLogEntry(ev *cdplog.EventEntryAdded) {
	var level models.ConsoleLevel
	switch ev.Entry.Level {
	case cdplog.LevelError:
		level = models.ConsoleLevelError
	case cdplog.LevelWarning:
		level = models.ConsoleLevelWarning
	default:
		return
	}

	s.bufferMessage(&models.ConsoleMessage{
		SessionID: s.session.ID,
		Level:     level,
		Message:   ev.Entry.Text,
		Timestamp: time.Now().UTC(),
	})
}

func (s *activeSession) bufferMessage(msg *models.ConsoleMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.messages = append(s.messages, msg)
}

// flushLoop drains the capture buffers on the configured cadence until
// the session stops, then performs one final drain.
func (s *activeSession) flushLoop() {
	defer s.flushWG.Done()

	ticker := time.NewTicker(s.config.FlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stopFlsh:
			s.flush()
			return
		}
	}
}

// flush persists the buffered capture in one batch and then forwards
// the persisted records to stream subscribers. An event still waiting
// on its body holds back everything buffered after it, keeping the
// persisted and broadcast order equal to capture order.
func (s *activeSession) flush() {
	s.mu.Lock()
	cut := len(s.events)
	for i, event := range s.events {
		if _, waiting := s.pendingBody[event]; waiting {
			cut = i
			break
		}
	}
	events := s.events[:cut:cut]
	s.events = s.events[cut:]
	messages := s.messages
	s.messages = nil
	s.mu.Unlock()

	if len(events) == 0 && len(messages) == 0 {
		return
	}

	if err := s.storage.AppendCaptured(context.Background(), events, messages); err != nil {
		s.logger.Error().
			Err(err).
			Int64("session_id", int64(s.session.ID)).
			Int("events", len(events)).
			Int("messages", len(messages)).
			Msg("Failed to persist capture batch")
		return
	}

	for _, event := range events {
		s.broadcaster.Broadcast(models.StreamMessage{
			Type:      models.StreamNetworkEvent,
			SessionID: s.session.ID,
			Payload:   event,
		})
	}
	for _, msg := range messages {
		if msg.Level != models.ConsoleLevelError {
			continue
		}
		s.broadcaster.Broadcast(models.StreamMessage{
			Type:      models.StreamConsoleError,
			SessionID: s.session.ID,
			Payload:   msg,
		})
	}

	s.logger.Debug().
		Int64("session_id", int64(s.session.ID)).
		Int("events", len(events)).
		Int("messages", len(messages)).
		Msg("Capture batch flushed")
}

// finish moves the session to a terminal state exactly once: final
// flush, persisted status update, status broadcast, page teardown.
func (s *activeSession) finish(status models.SessionStatus, errorDetail string) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if s.deadline != nil {
			s.deadline.Stop()
		}

		// Outstanding body fetches resolve (or time out) before the final
		// flush so no event is held back.
		s.bodyWG.Wait()

		close(s.stopFlsh)
		s.flushWG.Wait()

		now := time.Now().UTC()
		s.session.Status = status
		s.session.StoppedAt = &now
		if errorDetail != "" {
			s.session.ErrorDetail = errorDetail
		}
		if err := s.storage.UpdateSession(context.Background(), s.session); err != nil {
			s.logger.Error().
				Err(err).
				Int64("session_id", int64(s.session.ID)).
				Msg("Failed to finalise debug session")
		}

		s.broadcaster.Broadcast(models.StreamMessage{
			Type:      models.StreamStatus,
			SessionID: s.session.ID,
			Payload:   string(status),
		})
		s.broadcaster.CloseSession(s.session.ID)

		s.pageCancel()

		s.logger.Info().
			Int64("session_id", int64(s.session.ID)).
			Int64("target_id", int64(s.session.TargetID)).
			Str("status", string(status)).
			Msg("Debug session finished")

		if s.onDone != nil {
			s.onDone(s.session)
		}
	})
}

// requestPostData reassembles a request body from the CDP post data
// entries. Entries arrive base64-encoded; one that does not decode is
// taken verbatim.
func requestPostData(req *network.Request) string {
	if req == nil || len(req.PostDataEntries) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, entry := range req.PostDataEntries {
		if entry == nil || entry.Bytes == "" {
			continue
		}
		if decoded, err := base64.StdEncoding.DecodeString(entry.Bytes); err == nil {
			sb.Write(decoded)
		} else {
			sb.WriteString(entry.Bytes)
		}
	}
	return sb.String()
}

// marshalHeaders renders a CDP header map as a JSON string for storage.
func marshalHeaders(headers network.Headers) string {
	if len(headers) == 0 {
		return ""
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return ""
	}
	return string(data)
}

// capturableBody reports whether a response body is worth pulling:
// textual payloads only, binary assets stay out of the store.
func capturableBody(mimeType string) bool {
	mime := strings.ToLower(mimeType)
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	for _, fragment := range []string{"json", "xml", "html", "javascript"} {
		if strings.Contains(mime, fragment) {
			return true
		}
	}
	return false
}
