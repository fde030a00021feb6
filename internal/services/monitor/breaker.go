package monitor

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/interfaces"
)

// breakerState is the per-target record. blockedUntil is zero while the
// target is unblocked.
type breakerState struct {
	failureCount int
	blockedUntil time.Time
}

// Breaker suppresses checks for targets that keep failing. State lives in
// memory only and resets on restart.
type Breaker struct {
	mu        sync.Mutex
	states    map[uint64]*breakerState
	threshold int
	cooldown  time.Duration
	clock     clockwork.Clock
	logger    arbor.ILogger
}

// NewBreaker creates a circuit breaker with the given trip threshold and
// cooldown.
func NewBreaker(threshold int, cooldown time.Duration, clock clockwork.Clock, logger arbor.ILogger) interfaces.CircuitBreaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Breaker{
		states:    make(map[uint64]*breakerState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
		logger:    logger,
	}
}

// IsBlocked reports whether the target is suppressed. An expired block is
// cleared on inspection, including its failure count, so the target gets
// a fresh run of attempts after cooldown.
func (b *Breaker) IsBlocked(targetID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[targetID]
	if !ok || state.blockedUntil.IsZero() {
		return false
	}

	if b.clock.Now().Before(state.blockedUntil) {
		return true
	}

	delete(b.states, targetID)
	b.logger.Info().Int64("target_id", int64(targetID)).Msg("Circuit breaker cooldown expired, target unblocked")
	return false
}

// RecordSuccess clears all breaker state for the target.
func (b *Breaker) RecordSuccess(targetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, targetID)
}

// RecordFailure counts a failed check and trips the breaker once the
// threshold is reached.
func (b *Breaker) RecordFailure(targetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[targetID]
	if !ok {
		state = &breakerState{}
		b.states[targetID] = state
	}

	state.failureCount++
	if state.failureCount >= b.threshold && state.blockedUntil.IsZero() {
		state.blockedUntil = b.clock.Now().Add(b.cooldown)
		b.logger.Warn().
			Int64("target_id", int64(targetID)).
			Int("failures", state.failureCount).
			Str("cooldown", b.cooldown.String()).
			Msg("Circuit breaker tripped, suppressing checks")
	}
}

// Forget drops all breaker state for the target.
func (b *Breaker) Forget(targetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, targetID)
}
