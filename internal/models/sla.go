package models

import "time"

// BucketSize selects the granularity of bucketed SLA metrics.
type BucketSize string

const (
	BucketDay   BucketSize = "day"
	BucketWeek  BucketSize = "week"
	BucketMonth BucketSize = "month"
)

// Valid reports whether the bucket size is one of the supported values.
func (b BucketSize) Valid() bool {
	switch b {
	case BucketDay, BucketWeek, BucketMonth:
		return true
	}
	return false
}

// ResponseTimeStats summarises successful-check response times over a
// range. Nil when the range contains no successful checks.
type ResponseTimeStats struct {
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P75Ms  float64 `json:"p75_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// SLAMetrics are point metrics for one target over one time range.
// AvailabilityPercent is the share of the range not covered by recorded
// downtime; windows are clipped to the range before they count.
type SLAMetrics struct {
	TargetID            uint64             `json:"target_id"`
	RangeStart          time.Time          `json:"range_start"`
	RangeEnd            time.Time          `json:"range_end"`
	TotalChecks         int                `json:"total_checks"`
	SuccessfulChecks    int                `json:"successful_checks"`
	AvailabilityPercent float64            `json:"availability_percent"`
	ResponseTime        *ResponseTimeStats `json:"response_time,omitempty"`
	DowntimeCount       int                `json:"downtime_count"`
	DowntimeTotalSec    float64            `json:"downtime_total_seconds"`
}

// SLABucket is one bucket of a bucketed metrics query. Bucket bounds are
// clipped to the query range on both ends.
type SLABucket struct {
	BucketStart time.Time  `json:"bucket_start"`
	BucketEnd   time.Time  `json:"bucket_end"`
	Metrics     SLAMetrics `json:"metrics"`
}

// SLAReport is the full response for a bucketed query.
type SLAReport struct {
	TargetID   uint64      `json:"target_id"`
	RangeStart time.Time   `json:"range_start"`
	RangeEnd   time.Time   `json:"range_end"`
	Bucket     BucketSize  `json:"bucket,omitempty"`
	Overall    SLAMetrics  `json:"overall"`
	Buckets    []SLABucket `json:"buckets,omitempty"`
}
