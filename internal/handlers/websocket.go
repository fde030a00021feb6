package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Network events can arrive far faster than a browser client renders
// them. Per-connection throttle: beyond this rate they are dropped for
// that client; console errors and status messages are never throttled.
const (
	networkEventRate  = rate.Limit(200)
	networkEventBurst = 400
)

// StreamHandler serves the live debug stream at /ws/debug/{sessionID}.
type StreamHandler struct {
	debug            interfaces.DebugService
	broadcaster      interfaces.BroadcastService
	logger           arbor.ILogger
	serverInstanceID string
}

func NewStreamHandler(debug interfaces.DebugService, broadcaster interfaces.BroadcastService) *StreamHandler {
	h := &StreamHandler{
		debug:            debug,
		broadcaster:      broadcaster,
		logger:           common.GetLogger(),
		serverInstanceID: common.NewInstanceID(),
	}
	h.logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("Debug stream handler initialized")
	return h
}

// streamEnvelope wraps broadcast messages with the instance id so
// clients can detect a server restart mid-session.
type streamEnvelope struct {
	models.StreamMessage
	ServerInstanceID string `json:"server_instance_id,omitempty"`
}

// HandleStream upgrades the connection and relays the session's stream
// until the client disconnects or the session's subscribers are closed.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID, subPath, err := ParsePathID(r.URL.Path, "/ws/debug")
	if err != nil || subPath != "" {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.debug.GetSession(r.Context(), sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	ch, cancel := h.broadcaster.Subscribe(sessionID)
	defer cancel()

	var writeMu sync.Mutex
	writeMessage := func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	// Initial status frame carries the current state and the instance id
	if err := writeMessage(streamEnvelope{
		StreamMessage: models.StreamMessage{
			Type:      models.StreamStatus,
			SessionID: sessionID,
			Payload:   string(session.Status),
		},
		ServerInstanceID: h.serverInstanceID,
	}); err != nil {
		conn.Close()
		return
	}

	h.logger.Debug().
		Int64("session_id", int64(sessionID)).
		Int("subscribers", h.broadcaster.SubscriberCount(sessionID)).
		Msg("Debug stream client connected")

	// Read loop only detects disconnect, clients never send payloads
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn().Err(err).Msg("WebSocket error")
				}
				return
			}
		}
	}()

	throttle := rate.NewLimiter(networkEventRate, networkEventBurst)

	defer func() {
		conn.Close()
		h.logger.Debug().Int64("session_id", int64(sessionID)).Msg("Debug stream client disconnected")
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				// Session finished, subscribers were closed
				return
			}
			if msg.Type == models.StreamNetworkEvent && !throttle.Allow() {
				continue
			}
			if err := writeMessage(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
