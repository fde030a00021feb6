package models

// StreamMessageType labels messages on the live debug stream.
type StreamMessageType string

const (
	StreamNetworkEvent StreamMessageType = "network_event"
	StreamConsoleError StreamMessageType = "console_error"
	StreamStatus       StreamMessageType = "status"
)

// StreamMessage is the envelope delivered to debug-stream subscribers.
// Payload is the persisted record (NetworkEvent, ConsoleMessage) or a
// status string for lifecycle notifications.
type StreamMessage struct {
	Type      StreamMessageType `json:"type"`
	SessionID uint64            `json:"session_id"`
	Payload   interface{}       `json:"payload"`
}
