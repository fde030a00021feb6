package sla

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/storage/badger"
)

func newTestService(t *testing.T) (interfaces.SLAService, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})

	service := NewService(manager, &common.SLAConfig{CacheEnabled: true, CacheTTLSeconds: 300}, logger)
	return service, manager
}

func seedTarget(t *testing.T, manager interfaces.StorageManager, url string) *models.Target {
	t.Helper()

	target := &models.Target{
		URL:                  url,
		Name:                 "sla test",
		CheckIntervalSeconds: 60,
		Enabled:              true,
	}
	if err := manager.TargetStorage().CreateTarget(context.Background(), target); err != nil {
		t.Fatalf("failed to create target: %v", err)
	}
	return target
}

func seedCheck(t *testing.T, manager interfaces.StorageManager, targetID uint64, at time.Time, available bool, responseMs float64) {
	t.Helper()

	check := &models.Check{
		TargetID:  targetID,
		CheckedAt: at,
		Available: available,
	}
	if available {
		check.ResponseTimeMs = &responseMs
	}

	decide := func(open *models.DowntimeWindow, ok bool) interfaces.WindowAction {
		if !ok && open == nil {
			return interfaces.WindowOpen
		}
		if ok && open != nil {
			return interfaces.WindowClose
		}
		return interfaces.WindowNone
	}
	if _, err := manager.CheckStorage().RecordCheck(context.Background(), check, decide); err != nil {
		t.Fatalf("failed to record check: %v", err)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{100, 110, 120, 130, 140, 150, 160, 170, 180, 190}

	cases := []struct {
		p    float64
		want float64
	}{
		{50, 145},
		{75, 167.5},
		{90, 181},
		{95, 185.5},
		{99, 189.1},
	}
	for _, tc := range cases {
		got := percentile(sorted, tc.p)
		if !almostEqual(got, tc.want) {
			t.Errorf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}

	if got := percentile([]float64{42}, 99); got != 42 {
		t.Errorf("single-sample percentile = %v, want 42", got)
	}
}

func TestBucketAlignment(t *testing.T) {
	// 2026-08-19 is a Wednesday
	wed := time.Date(2026, 8, 19, 15, 30, 0, 0, time.UTC)

	if got := bucketStart(wed, models.BucketDay); !got.Equal(time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day bucket start = %v", got)
	}
	if got := bucketStart(wed, models.BucketWeek); !got.Equal(time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week bucket start = %v, want Monday 2026-08-17", got)
	}
	if got := bucketStart(wed, models.BucketMonth); !got.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bucket start = %v", got)
	}

	// Sunday belongs to the week that started the previous Monday
	sun := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	if got := bucketStart(sun, models.BucketWeek); !got.Equal(time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday week bucket start = %v, want Monday 2026-08-17", got)
	}
}

func TestMetricsAvailabilityAndDowntime(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-metrics.example.com")

	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	seedCheck(t, manager, target.ID, base, true, 120)
	seedCheck(t, manager, target.ID, base.Add(1*time.Minute), false, 0)
	seedCheck(t, manager, target.ID, base.Add(2*time.Minute), false, 0)
	seedCheck(t, manager, target.ID, base.Add(3*time.Minute), true, 180)

	metrics, err := service.Metrics(context.Background(), target.ID, base, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}

	if metrics.TotalChecks != 4 || metrics.SuccessfulChecks != 2 {
		t.Errorf("got %d/%d checks, want 2/4", metrics.SuccessfulChecks, metrics.TotalChecks)
	}
	// 120s of downtime in a 600s range: availability follows wall time,
	// not the 2/4 check ratio
	if !almostEqual(metrics.AvailabilityPercent, 80.0) {
		t.Errorf("availability = %v, want 80", metrics.AvailabilityPercent)
	}
	if metrics.DowntimeCount != 1 {
		t.Errorf("downtime count = %d, want 1", metrics.DowntimeCount)
	}
	// Window opened at +1m, closed at +3m
	if !almostEqual(metrics.DowntimeTotalSec, 120) {
		t.Errorf("downtime seconds = %v, want 120", metrics.DowntimeTotalSec)
	}
	if metrics.ResponseTime == nil {
		t.Fatal("expected response time stats")
	}
	if !almostEqual(metrics.ResponseTime.MeanMs, 150) {
		t.Errorf("mean response = %v, want 150", metrics.ResponseTime.MeanMs)
	}
}

func TestMetricsEmptyRangeIsFullyAvailable(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-empty.example.com")

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	metrics, err := service.Metrics(context.Background(), target.ID, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if metrics.TotalChecks != 0 {
		t.Errorf("total checks = %d, want 0", metrics.TotalChecks)
	}
	if !almostEqual(metrics.AvailabilityPercent, 100.0) {
		t.Errorf("availability = %v, want 100", metrics.AvailabilityPercent)
	}
	if metrics.ResponseTime != nil {
		t.Error("expected nil response time stats for empty range")
	}
}

func TestMetricsOpenWindowExtendsToRangeEnd(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-open-window.example.com")

	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	seedCheck(t, manager, target.ID, base, false, 0)

	end := base.Add(30 * time.Minute)
	metrics, err := service.Metrics(context.Background(), target.ID, base, end)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if metrics.DowntimeCount != 1 {
		t.Fatalf("downtime count = %d, want 1", metrics.DowntimeCount)
	}
	if !almostEqual(metrics.DowntimeTotalSec, 1800) {
		t.Errorf("downtime seconds = %v, want 1800", metrics.DowntimeTotalSec)
	}
	// Down for the whole range
	if !almostEqual(metrics.AvailabilityPercent, 0) {
		t.Errorf("availability = %v, want 0", metrics.AvailabilityPercent)
	}
}

func TestMetricsAvailabilityIgnoresCheckRatio(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-time-based.example.com")

	// A single failed check opens a 5-minute window inside an hour-long
	// range. The check ratio is 0/2 but only a twelfth of the hour was
	// actually down.
	base := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)
	seedCheck(t, manager, target.ID, base.Add(10*time.Minute), false, 0)
	seedCheck(t, manager, target.ID, base.Add(15*time.Minute), true, 90)

	metrics, err := service.Metrics(context.Background(), target.ID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if metrics.SuccessfulChecks != 1 || metrics.TotalChecks != 2 {
		t.Fatalf("got %d/%d checks, want 1/2", metrics.SuccessfulChecks, metrics.TotalChecks)
	}
	want := (3600.0 - 300.0) / 3600.0 * 100.0
	if !almostEqual(metrics.AvailabilityPercent, want) {
		t.Errorf("availability = %v, want %v", metrics.AvailabilityPercent, want)
	}
}

func TestReportBucketsClippedToRange(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-report.example.com")

	// Wednesday noon to Friday noon, daily buckets: partial, full, partial
	start := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	seedCheck(t, manager, target.ID, start.Add(time.Hour), true, 100)
	seedCheck(t, manager, target.ID, start.Add(25*time.Hour), true, 140)

	report, err := service.Report(context.Background(), target.ID, start, end, models.BucketDay)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if len(report.Buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(report.Buckets))
	}
	first := report.Buckets[0]
	if !first.BucketStart.Equal(start) {
		t.Errorf("first bucket start = %v, want clipped to %v", first.BucketStart, start)
	}
	last := report.Buckets[len(report.Buckets)-1]
	if !last.BucketEnd.Equal(end) {
		t.Errorf("last bucket end = %v, want clipped to %v", last.BucketEnd, end)
	}
	if first.Metrics.TotalChecks != 1 || report.Buckets[1].Metrics.TotalChecks != 1 {
		t.Errorf("bucket check counts = %d,%d, want 1,1",
			first.Metrics.TotalChecks, report.Buckets[1].Metrics.TotalChecks)
	}
	if report.Overall.TotalChecks != 2 {
		t.Errorf("overall checks = %d, want 2", report.Overall.TotalChecks)
	}
}

func TestMetricsCachedUntilCleared(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-cache.example.com")

	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	end := base.Add(10 * time.Minute)
	seedCheck(t, manager, target.ID, base, true, 100)

	first, err := service.Metrics(context.Background(), target.ID, base, end)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if first.TotalChecks != 1 {
		t.Fatalf("total checks = %d, want 1", first.TotalChecks)
	}

	// A check recorded after the first query is invisible until the
	// cache is cleared
	seedCheck(t, manager, target.ID, base.Add(time.Minute), true, 110)
	cached, err := service.Metrics(context.Background(), target.ID, base, end)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if cached.TotalChecks != 1 {
		t.Errorf("total checks = %d, want cached 1", cached.TotalChecks)
	}

	service.ClearCache()
	fresh, err := service.Metrics(context.Background(), target.ID, base, end)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if fresh.TotalChecks != 2 {
		t.Errorf("total checks after clear = %d, want 2", fresh.TotalChecks)
	}
}

func TestMetricsCacheDisabledRecomputes(t *testing.T) {
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})
	service := NewService(manager, &common.SLAConfig{CacheEnabled: false, CacheTTLSeconds: 300}, logger)
	target := seedTarget(t, manager, "https://sla-nocache.example.com")

	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	end := base.Add(10 * time.Minute)
	seedCheck(t, manager, target.ID, base, true, 100)

	if _, err := service.Metrics(context.Background(), target.ID, base, end); err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}

	seedCheck(t, manager, target.ID, base.Add(time.Minute), true, 110)
	metrics, err := service.Metrics(context.Background(), target.ID, base, end)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if metrics.TotalChecks != 2 {
		t.Errorf("total checks = %d, want 2 with cache disabled", metrics.TotalChecks)
	}
}

func TestReportRejectsInvalidInput(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://sla-invalid.example.com")

	now := time.Now().UTC()
	if _, err := service.Report(context.Background(), target.ID, now, now.Add(time.Hour), "hour"); err == nil {
		t.Error("expected error for unknown bucket size")
	}
	if _, err := service.Metrics(context.Background(), target.ID, now, now.Add(-time.Hour)); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := service.Metrics(context.Background(), 9999, now, now.Add(time.Hour)); err == nil {
		t.Error("expected error for unknown target")
	}
}
