package sla

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
)

// Service implements SLAService. Results are cached by exact query so
// dashboards polling the same range do not recompute on every hit; the
// cache can be switched off entirely in config.
type Service struct {
	storage      interfaces.StorageManager
	cache        *ttlcache.Cache[string, any]
	cacheEnabled bool
	logger       arbor.ILogger
}

// NewService creates the SLA service with a TTL result cache.
func NewService(storage interfaces.StorageManager, config *common.SLAConfig, logger arbor.ILogger) interfaces.SLAService {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, any](config.CacheTTL()),
	)
	if config.CacheEnabled {
		go cache.Start()
	}

	return &Service{
		storage:      storage,
		cache:        cache,
		cacheEnabled: config.CacheEnabled,
		logger:       logger,
	}
}

// Metrics computes point metrics for [start, end).
func (s *Service) Metrics(ctx context.Context, targetID uint64, start, end time.Time) (*models.SLAMetrics, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("range end before start: %w", interfaces.ErrInvalid)
	}
	if _, err := s.storage.TargetStorage().GetTarget(ctx, targetID); err != nil {
		return nil, err
	}

	key := cacheKey(targetID, start, end, "")
	if s.cacheEnabled {
		if item := s.cache.Get(key); item != nil {
			if metrics, ok := item.Value().(*models.SLAMetrics); ok {
				return metrics, nil
			}
		}
	}

	metrics, err := s.computeMetrics(ctx, targetID, start, end)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		s.cache.Set(key, metrics, ttlcache.DefaultTTL)
	}
	return metrics, nil
}

// Report computes point metrics plus calendar-aligned buckets. Bucket
// bounds are clipped to the query range on both ends.
func (s *Service) Report(ctx context.Context, targetID uint64, start, end time.Time, bucket models.BucketSize) (*models.SLAReport, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("range end before start: %w", interfaces.ErrInvalid)
	}
	if !bucket.Valid() {
		return nil, fmt.Errorf("unknown bucket size %q: %w", bucket, interfaces.ErrInvalid)
	}
	if _, err := s.storage.TargetStorage().GetTarget(ctx, targetID); err != nil {
		return nil, err
	}

	key := cacheKey(targetID, start, end, bucket)
	if s.cacheEnabled {
		if item := s.cache.Get(key); item != nil {
			if report, ok := item.Value().(*models.SLAReport); ok {
				return report, nil
			}
		}
	}

	overall, err := s.computeMetrics(ctx, targetID, start, end)
	if err != nil {
		return nil, err
	}

	report := &models.SLAReport{
		TargetID:   targetID,
		RangeStart: start,
		RangeEnd:   end,
		Bucket:     bucket,
		Overall:    *overall,
	}

	for cursor := bucketStart(start.UTC(), bucket); cursor.Before(end); cursor = nextBucket(cursor, bucket) {
		bStart := cursor
		if bStart.Before(start) {
			bStart = start
		}
		bEnd := nextBucket(cursor, bucket)
		if bEnd.After(end) {
			bEnd = end
		}

		metrics, err := s.computeMetrics(ctx, targetID, bStart, bEnd)
		if err != nil {
			return nil, err
		}
		report.Buckets = append(report.Buckets, models.SLABucket{
			BucketStart: bStart,
			BucketEnd:   bEnd,
			Metrics:     *metrics,
		})
	}

	if s.cacheEnabled {
		s.cache.Set(key, report, ttlcache.DefaultTTL)
	}
	return report, nil
}

// ClearCache drops all cached results.
func (s *Service) ClearCache() {
	s.cache.DeleteAll()
}

// computeMetrics builds one SLAMetrics from the check history and the
// downtime windows overlapping [start, end). Availability is the share
// of the range not covered by downtime; a zero-length range reports
// full availability.
func (s *Service) computeMetrics(ctx context.Context, targetID uint64, start, end time.Time) (*models.SLAMetrics, error) {
	checks, err := s.storage.CheckStorage().ListChecks(ctx, targetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}

	metrics := &models.SLAMetrics{
		TargetID:            targetID,
		RangeStart:          start,
		RangeEnd:            end,
		TotalChecks:         len(checks),
		AvailabilityPercent: 100.0,
	}

	var responseTimes []float64
	for _, check := range checks {
		if !check.Available {
			continue
		}
		metrics.SuccessfulChecks++
		if check.ResponseTimeMs != nil {
			responseTimes = append(responseTimes, *check.ResponseTimeMs)
		}
	}
	metrics.ResponseTime = summarizeResponseTimes(responseTimes)

	windows, err := s.storage.DowntimeStorage().ListWindows(ctx, targetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list downtime windows: %w", err)
	}
	for _, window := range windows {
		metrics.DowntimeCount++

		ws := window.StartedAt
		if ws.Before(start) {
			ws = start
		}
		// An open window extends to the end of the queried range.
		we := end
		if window.EndedAt != nil && window.EndedAt.Before(end) {
			we = *window.EndedAt
		}
		if we.After(ws) {
			metrics.DowntimeTotalSec += we.Sub(ws).Seconds()
		}
	}

	if span := end.Sub(start); span > 0 {
		pct := (span.Seconds() - metrics.DowntimeTotalSec) / span.Seconds() * 100.0
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		metrics.AvailabilityPercent = pct
	}

	return metrics, nil
}

// summarizeResponseTimes computes mean and interpolated percentiles.
// Returns nil when there is nothing to summarise.
func summarizeResponseTimes(samples []float64) *models.ResponseTimeStats {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return &models.ResponseTimeStats{
		MeanMs: sum / float64(len(sorted)),
		P50Ms:  percentile(sorted, 50),
		P75Ms:  percentile(sorted, 75),
		P90Ms:  percentile(sorted, 90),
		P95Ms:  percentile(sorted, 95),
		P99Ms:  percentile(sorted, 99),
	}
}

// percentile uses linear interpolation between closest ranks over a
// sorted sample: rank = p/100 * (n-1).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// bucketStart aligns a time to the start of its calendar bucket in UTC.
// Weeks start on Monday.
func bucketStart(t time.Time, bucket models.BucketSize) time.Time {
	t = t.UTC()
	switch bucket {
	case models.BucketWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// nextBucket advances one calendar bucket.
func nextBucket(t time.Time, bucket models.BucketSize) time.Time {
	switch bucket {
	case models.BucketWeek:
		return t.AddDate(0, 0, 7)
	case models.BucketMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func cacheKey(targetID uint64, start, end time.Time, bucket models.BucketSize) string {
	return fmt.Sprintf("%d|%d|%d|%s", targetID, start.UnixNano(), end.UnixNano(), bucket)
}
