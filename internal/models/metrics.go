package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for admin dashboards.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SubmissionsFiled         uint64    `json:"submissions_filed"`
	SubmissionsApproved      uint64    `json:"submissions_approved"`
	SubmissionsRejected      uint64    `json:"submissions_rejected"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
