package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/vigilo/internal/interfaces"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps the service sentinel errors onto HTTP status
// codes. Unknown errors become an opaque 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interfaces.ErrInvalid):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, interfaces.ErrConflict):
		return WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interfaces.ErrNotActive):
		return WriteError(w, http.StatusConflict, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// ParsePathID extracts the numeric id that follows prefix in the URL
// path, tolerating a trailing subpath.
func ParsePathID(path, prefix string) (uint64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimPrefix(rest, "/")

	idPart := rest
	subPath := ""
	if idx := strings.Index(rest, "/"); idx >= 0 {
		idPart = rest[:idx]
		subPath = rest[idx+1:]
	}

	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, "", errors.New("invalid id in path")
	}
	return id, subPath, nil
}

// GetLimitOffset extracts limit/offset query parameters.
// Defaults to limit 100, capped at 1000.
func GetLimitOffset(r *http.Request) (limit, offset int) {
	limit = 100
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// GetTimeRange extracts start/end query parameters (RFC 3339). When
// absent the range defaults to the trailing defaultSpan ending now.
func GetTimeRange(r *http.Request, defaultSpan time.Duration) (start, end time.Time, err error) {
	end = time.Now().UTC()
	start = end.Add(-defaultSpan)

	if startStr := r.URL.Query().Get("start"); startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return start, end, errors.New("invalid start, expected RFC 3339")
		}
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return start, end, errors.New("invalid end, expected RFC 3339")
		}
	}
	return start.UTC(), end.UTC(), nil
}
