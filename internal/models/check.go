package models

import "time"

// ErrorKind classifies a failed check by its proximate cause.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindConnect    ErrorKind = "connect"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindNavigation ErrorKind = "navigation"
	ErrorKindUnexpected ErrorKind = "unexpected"
)

// Check is the outcome of a single availability probe. Records are
// append-only; Available is true only when a final HTTP status in
// [200,400) was observed.
type Check struct {
	ID             uint64    `badgerhold:"key" json:"id"`
	TargetID       uint64    `badgerhold:"index" json:"target_id"`
	CheckedAt      time.Time `badgerhold:"index" json:"checked_at"`
	Available      bool      `json:"available"`
	StatusCode     *int      `json:"status_code,omitempty"`
	ResponseTimeMs *float64  `json:"response_time_ms,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail    string    `json:"error_detail,omitempty"`
}
