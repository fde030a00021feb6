package models

import "time"

// DowntimeWindow is a contiguous span of unavailability for one target.
// EndedAt is nil while the outage is ongoing; at most one open window
// exists per target.
type DowntimeWindow struct {
	ID        uint64     `badgerhold:"key" json:"id"`
	TargetID  uint64     `badgerhold:"index" json:"target_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Open reports whether the window has not yet been closed.
func (w *DowntimeWindow) Open() bool {
	return w.EndedAt == nil
}

// Duration returns the window length, using now for open windows.
// Never negative.
func (w *DowntimeWindow) Duration(now time.Time) time.Duration {
	end := now
	if w.EndedAt != nil {
		end = *w.EndedAt
	}
	d := end.Sub(w.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
