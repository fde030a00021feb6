package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/services/sla"
)

// defaultSLASpan is the trailing range used when the query omits bounds.
const defaultSLASpan = 30 * 24 * time.Hour

// SLAHandler serves availability analytics.
type SLAHandler struct {
	sla    interfaces.SLAService
	logger arbor.ILogger
}

func NewSLAHandler(slaService interfaces.SLAService) *SLAHandler {
	return &SLAHandler{
		sla:    slaService,
		logger: common.GetLogger(),
	}
}

// MetricsHandler serves GET /api/sla/metrics. Without a bucket param it
// returns point metrics; with one it returns the bucketed report,
// optionally reduced to a chartable series via series=availability or
// series=response_time.
func (h *SLAHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	targetID, err := strconv.ParseUint(r.URL.Query().Get("target_id"), 10, 64)
	if err != nil || targetID == 0 {
		WriteError(w, http.StatusBadRequest, "target_id is required")
		return
	}

	start, end, err := GetTimeRange(r, defaultSLASpan)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucketParam := r.URL.Query().Get("bucket")
	if bucketParam == "" {
		metrics, err := h.sla.Metrics(r.Context(), targetID, start, end)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, metrics)
		return
	}

	report, err := h.sla.Report(r.Context(), targetID, start, end, models.BucketSize(bucketParam))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	switch r.URL.Query().Get("series") {
	case "":
		WriteJSON(w, http.StatusOK, report)
	case "availability":
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"target_id": targetID,
			"series":    "availability",
			"points":    sla.AvailabilitySeries(report),
		})
	case "response_time":
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"target_id": targetID,
			"series":    "response_time",
			"points":    sla.ResponseTimeSeries(report),
		})
	default:
		WriteError(w, http.StatusBadRequest, "unknown series, expected availability or response_time")
	}
}
