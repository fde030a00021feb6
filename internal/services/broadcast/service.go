package broadcast

import (
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// sinkBuffer is the per-subscriber queue depth. A subscriber that falls
// this far behind is dropped rather than allowed to stall capture.
const sinkBuffer = 256

type subscriber struct {
	ch     chan models.StreamMessage
	closed bool
}

// Service implements BroadcastService with per-session subscriber sets.
// Delivery never blocks the caller; per-subscriber ordering is the
// channel's FIFO order.
type Service struct {
	mu       sync.Mutex
	sessions map[uint64]map[*subscriber]struct{}
	logger   arbor.ILogger
}

// NewService creates a new broadcast service
func NewService(logger arbor.ILogger) interfaces.BroadcastService {
	return &Service{
		sessions: make(map[uint64]map[*subscriber]struct{}),
		logger:   logger,
	}
}

// Subscribe registers a sink for one session. The cancel function is
// idempotent; the returned channel closes on cancel or drop.
func (s *Service) Subscribe(sessionID uint64) (<-chan models.StreamMessage, func()) {
	sub := &subscriber{ch: make(chan models.StreamMessage, sinkBuffer)}

	s.mu.Lock()
	set, ok := s.sessions[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		s.sessions[sessionID] = set
	}
	set[sub] = struct{}{}
	count := len(set)
	s.mu.Unlock()

	s.logger.Debug().
		Int64("session_id", int64(sessionID)).
		Int("subscribers", count).
		Msg("Stream subscriber added")

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.removeLocked(sessionID, sub)
	}
	return sub.ch, cancel
}

// Broadcast delivers the message to every subscriber of its session. A
// subscriber with a full queue is removed and its channel closed, which
// the reader observes as a disconnect.
func (s *Service) Broadcast(msg models.StreamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sessions[msg.SessionID]
	if !ok {
		return
	}

	for sub := range set {
		select {
		case sub.ch <- msg:
		default:
			s.removeLocked(msg.SessionID, sub)
			s.logger.Warn().
				Int64("session_id", int64(msg.SessionID)).
				Msg("Slow stream subscriber dropped")
		}
	}
}

// SubscriberCount returns the number of live sinks for a session.
func (s *Service) SubscriberCount(sessionID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[sessionID])
}

// CloseSession drops all subscribers of a session.
func (s *Service) CloseSession(sessionID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.sessions[sessionID] {
		s.removeLocked(sessionID, sub)
	}
}

// removeLocked drops one subscriber and GCs the session set when it
// empties. Must be called with the mutex held.
func (s *Service) removeLocked(sessionID uint64, sub *subscriber) {
	set, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	if len(set) == 0 {
		delete(s.sessions, sessionID)
	}
}
