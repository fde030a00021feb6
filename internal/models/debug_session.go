package models

import "time"

// SessionStatus is the lifecycle state of a debug session.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusStopped SessionStatus = "stopped"
	SessionStatusFailed  SessionStatus = "failed"
	SessionStatusTimeout SessionStatus = "timeout"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusStopped, SessionStatusFailed, SessionStatusTimeout:
		return true
	}
	return false
}

// DebugSession is a browser capture session bound to one target. At most
// one non-terminal session exists per target at a time.
type DebugSession struct {
	ID                   uint64        `badgerhold:"key" json:"id"`
	TargetID             uint64        `badgerhold:"index" json:"target_id"`
	Status               SessionStatus `badgerhold:"index" json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	StoppedAt            *time.Time    `json:"stopped_at,omitempty"`
	DurationLimitSeconds *int          `json:"duration_limit_seconds,omitempty"`
	ErrorDetail          string        `json:"error_detail,omitempty"`
}

// NetworkEventKind distinguishes the two halves of a captured exchange.
type NetworkEventKind string

const (
	NetworkEventRequest  NetworkEventKind = "request"
	NetworkEventResponse NetworkEventKind = "response"
)

// NetworkEvent is one captured request or response observed by an active
// debug session. Header maps are stored as JSON strings; bodies are
// truncated at capture time.
type NetworkEvent struct {
	ID              uint64           `badgerhold:"key" json:"id"`
	SessionID       uint64           `badgerhold:"index" json:"session_id"`
	Kind            NetworkEventKind `json:"kind"`
	URL             string           `json:"url"`
	Method          string           `json:"method,omitempty"`
	StatusCode      int              `json:"status_code,omitempty"`
	RequestHeaders  string           `json:"request_headers,omitempty"`
	ResponseHeaders string           `json:"response_headers,omitempty"`
	RequestBody     string           `json:"request_body,omitempty"`
	ResponseBody    string           `json:"response_body,omitempty"`
	BodyTruncated   bool             `json:"body_truncated,omitempty"`
	ResourceType    string           `json:"resource_type,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	DurationMs      *float64         `json:"duration_ms,omitempty"`
}

// ConsoleLevel is the severity of a captured console message.
type ConsoleLevel string

const (
	ConsoleLevelError   ConsoleLevel = "error"
	ConsoleLevelWarning ConsoleLevel = "warning"
	ConsoleLevelInfo    ConsoleLevel = "info"
	ConsoleLevelLog     ConsoleLevel = "log"
)

// ConsoleMessage is a captured browser console entry. Only error and
// warning levels are persisted during capture.
type ConsoleMessage struct {
	ID        uint64       `badgerhold:"key" json:"id"`
	SessionID uint64       `badgerhold:"index" json:"session_id"`
	Level     ConsoleLevel `json:"level"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// DebugSessionCreate is the boundary payload for creating a session.
type DebugSessionCreate struct {
	TargetID             uint64 `json:"target_id" validate:"required"`
	DurationLimitSeconds *int   `json:"duration_limit_seconds" validate:"omitempty,min=1"`
}
