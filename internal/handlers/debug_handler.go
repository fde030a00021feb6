package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// DebugHandler serves debug-capture session management and captured data.
type DebugHandler struct {
	debug  interfaces.DebugService
	logger arbor.ILogger
}

func NewDebugHandler(debug interfaces.DebugService) *DebugHandler {
	return &DebugHandler{
		debug:  debug,
		logger: common.GetLogger(),
	}
}

// CollectionHandler serves /api/debug/sessions: GET lists (optionally by
// target_id), POST creates a pending session.
func (h *DebugHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSessions(w, r)
	case http.MethodPost:
		h.createSession(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler serves /api/debug/sessions/{id} and its subresources:
// GET on the session, POST {id}/start, POST {id}/stop,
// GET {id}/events, GET {id}/console.
func (h *DebugHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id, subPath, err := ParsePathID(r.URL.Path, "/api/debug/sessions")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	switch subPath {
	case "":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.getSession(w, r, id)
	case "start":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		h.startSession(w, r, id)
	case "stop":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		h.stopSession(w, r, id)
	case "events":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.listEvents(w, r, id)
	case "console":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.listConsole(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "unknown session resource")
	}
}

func (h *DebugHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var input models.DebugSessionCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.TargetID == 0 {
		WriteError(w, http.StatusBadRequest, "target_id is required")
		return
	}

	session, err := h.debug.CreateSession(r.Context(), &input)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, session)
}

func (h *DebugHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	var targetID uint64
	if targetStr := r.URL.Query().Get("target_id"); targetStr != "" {
		parsed, err := strconv.ParseUint(targetStr, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid target_id")
			return
		}
		targetID = parsed
	}

	sessions, err := h.debug.ListSessions(r.Context(), targetID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list debug sessions")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *DebugHandler) getSession(w http.ResponseWriter, r *http.Request, id uint64) {
	session, err := h.debug.GetSession(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *DebugHandler) startSession(w http.ResponseWriter, r *http.Request, id uint64) {
	session, err := h.debug.StartSession(r.Context(), id)
	if err != nil {
		h.logger.Warn().Err(err).Int64("session_id", int64(id)).Msg("Failed to start debug session")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *DebugHandler) stopSession(w http.ResponseWriter, r *http.Request, id uint64) {
	session, err := h.debug.StopSession(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *DebugHandler) listEvents(w http.ResponseWriter, r *http.Request, id uint64) {
	if _, err := h.debug.GetSession(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	limit, offset := GetLimitOffset(r)
	events, err := h.debug.ListNetworkEvents(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Int64("session_id", int64(id)).Msg("Failed to list network events")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"events":     events,
		"count":      len(events),
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *DebugHandler) listConsole(w http.ResponseWriter, r *http.Request, id uint64) {
	if _, err := h.debug.GetSession(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	limit, offset := GetLimitOffset(r)
	messages, err := h.debug.ListConsoleMessages(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Int64("session_id", int64(id)).Msg("Failed to list console messages")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   messages,
		"count":      len(messages),
		"limit":      limit,
		"offset":     offset,
	})
}
