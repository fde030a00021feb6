package interfaces

import "github.com/ternarybob/vigilo/internal/models"

// BroadcastService fans live debug-session data out to subscribers.
// Delivery is best effort: a subscriber that cannot keep up is dropped.
type BroadcastService interface {
	// Subscribe registers a sink for one session. The returned channel
	// is closed when the subscriber is cancelled or dropped.
	Subscribe(sessionID uint64) (<-chan models.StreamMessage, func())

	// Broadcast delivers the message to every subscriber of its
	// session without blocking.
	Broadcast(msg models.StreamMessage)

	// SubscriberCount returns the number of live sinks for a session.
	SubscriberCount(sessionID uint64) int

	// CloseSession drops all subscribers of a session.
	CloseSession(sessionID uint64)
}
