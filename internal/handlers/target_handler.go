package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// TargetHandler serves target CRUD, foreground checks and check history.
type TargetHandler struct {
	targets interfaces.TargetService
	monitor interfaces.MonitorService
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewTargetHandler(targets interfaces.TargetService, monitor interfaces.MonitorService, storage interfaces.StorageManager) *TargetHandler {
	return &TargetHandler{
		targets: targets,
		monitor: monitor,
		storage: storage,
		logger:  common.GetLogger(),
	}
}

// CollectionHandler serves /api/targets: GET lists, POST creates.
func (h *TargetHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTargets(w, r)
	case http.MethodPost:
		h.createTarget(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler serves /api/targets/{id} and its subresources:
// GET/PUT/DELETE on the target, POST {id}/check, GET {id}/checks.
func (h *TargetHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id, subPath, err := ParsePathID(r.URL.Path, "/api/targets")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid target id")
		return
	}

	switch subPath {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getTarget(w, r, id)
		case http.MethodPut:
			h.updateTarget(w, r, id)
		case http.MethodDelete:
			h.deleteTarget(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "check":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		h.triggerCheck(w, r, id)
	case "checks":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.listChecks(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "unknown target resource")
	}
}

func (h *TargetHandler) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.targets.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list targets")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"targets": targets,
		"count":   len(targets),
	})
}

func (h *TargetHandler) createTarget(w http.ResponseWriter, r *http.Request) {
	var input models.TargetCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := h.targets.Create(r.Context(), &input)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, target)
}

func (h *TargetHandler) getTarget(w http.ResponseWriter, r *http.Request, id uint64) {
	target, err := h.targets.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, target)
}

func (h *TargetHandler) updateTarget(w http.ResponseWriter, r *http.Request, id uint64) {
	var patch models.TargetUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := h.targets.Update(r.Context(), id, &patch)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, target)
}

func (h *TargetHandler) deleteTarget(w http.ResponseWriter, r *http.Request, id uint64) {
	if err := h.targets.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "target deleted")
}

// triggerCheck runs a foreground check, bypassing the schedule. A nil
// check means the run was suppressed (breaker open or target disabled).
func (h *TargetHandler) triggerCheck(w http.ResponseWriter, r *http.Request, id uint64) {
	// Ensure the id maps to a real target so a suppressed run still 404s
	// correctly for unknown ids
	if _, err := h.targets.Get(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	check, err := h.monitor.RunCheck(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("target_id", int64(id)).Msg("Foreground check failed")
		WriteServiceError(w, err)
		return
	}
	if check == nil {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "skipped",
			"message": "check suppressed by circuit breaker or target state",
		})
		return
	}
	WriteJSON(w, http.StatusOK, check)
}

func (h *TargetHandler) listChecks(w http.ResponseWriter, r *http.Request, id uint64) {
	if _, err := h.targets.Get(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	start, end, err := GetTimeRange(r, 24*time.Hour)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	checks, err := h.storage.CheckStorage().ListChecks(r.Context(), id, start, end)
	if err != nil {
		h.logger.Error().Err(err).Int64("target_id", int64(id)).Msg("Failed to list checks")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"target_id": id,
		"start":     start,
		"end":       end,
		"checks":    checks,
		"count":     len(checks),
	})
}
