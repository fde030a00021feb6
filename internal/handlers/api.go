package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

type APIHandler struct {
	storage interfaces.StorageManager
	browser interfaces.BrowserService
	logger  arbor.ILogger
}

func NewAPIHandler(storage interfaces.StorageManager, browser interfaces.BrowserService) *APIHandler {
	return &APIHandler{
		storage: storage,
		browser: browser,
		logger:  common.GetLogger(),
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status. Storage is probed with a
// count; the browser is reported but never launched just for health.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	storageStatus := "ok"
	targets := 0
	if count, err := h.storage.TargetStorage().CountTargets(r.Context()); err != nil {
		storageStatus = "error"
	} else {
		targets = count
	}

	browserStatus := "idle"
	if h.browser != nil && h.browser.Healthy() {
		browserStatus = "ok"
	}

	status := http.StatusOK
	overall := "ok"
	if storageStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	WriteJSON(w, status, map[string]interface{}{
		"status":  overall,
		"storage": storageStatus,
		"browser": browserStatus,
		"targets": targets,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
