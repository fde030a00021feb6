package models

import "time"

// Target interval bounds in seconds. Intervals outside this range are
// rejected at the boundary before anything reaches storage.
const (
	MinCheckIntervalSeconds = 60
	MaxCheckIntervalSeconds = 3600

	MaxURLBytes  = 2048
	MaxNameBytes = 255
)

// Target is a monitored endpoint. The URL is unique across all targets;
// deleting a target cascades to its checks, downtime windows and debug
// sessions at the storage layer.
type Target struct {
	ID                   uint64    `badgerhold:"key" json:"id"`
	URL                  string    `badgerhold:"unique" json:"url"`
	Name                 string    `json:"name"`
	CheckIntervalSeconds int       `json:"check_interval_seconds"`
	Enabled              bool      `json:"enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Interval returns the configured check interval as a duration.
func (t *Target) Interval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// TargetCreate is the boundary payload for creating a target.
type TargetCreate struct {
	URL                  string `json:"url" validate:"required,url,startswith=http,max=2048"`
	Name                 string `json:"name" validate:"required,max=255"`
	CheckIntervalSeconds int    `json:"check_interval_seconds" validate:"min=60,max=3600"`
	Enabled              *bool  `json:"enabled"`
}

// TargetUpdate is a patch: nil fields are left unchanged.
type TargetUpdate struct {
	URL                  *string `json:"url" validate:"omitempty,url,startswith=http,max=2048"`
	Name                 *string `json:"name" validate:"omitempty,max=255"`
	CheckIntervalSeconds *int    `json:"check_interval_seconds" validate:"omitempty,min=60,max=3600"`
	Enabled              *bool   `json:"enabled"`
}
