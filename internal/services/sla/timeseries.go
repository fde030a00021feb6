package sla

import (
	"time"

	"github.com/ternarybob/vigilo/internal/models"
)

// Point is one sample of a charted series, stamped with its bucket start.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// AvailabilitySeries extracts the per-bucket availability percentage
// from a bucketed report.
func AvailabilitySeries(report *models.SLAReport) []Point {
	points := make([]Point, 0, len(report.Buckets))
	for _, bucket := range report.Buckets {
		points = append(points, Point{
			Time:  bucket.BucketStart,
			Value: bucket.Metrics.AvailabilityPercent,
		})
	}
	return points
}

// ResponseTimeSeries extracts the per-bucket mean response time.
// Buckets with no successful checks are skipped rather than zeroed.
func ResponseTimeSeries(report *models.SLAReport) []Point {
	points := make([]Point, 0, len(report.Buckets))
	for _, bucket := range report.Buckets {
		if bucket.Metrics.ResponseTime == nil {
			continue
		}
		points = append(points, Point{
			Time:  bucket.BucketStart,
			Value: bucket.Metrics.ResponseTime.MeanMs,
		})
	}
	return points
}
