package models

import "time"

// SystemMetrics is an aggregated runtime snapshot served alongside the
// Prometheus endpoint for quick inspection.
type SystemMetrics struct {
	SessionHitRatio          float64   `json:"session_hit_ratio"`
	SessionHits              uint64    `json:"session_hits"`
	SessionMisses            uint64    `json:"session_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ShareNotificationsQueued uint64    `json:"share_notifications_queued"`
	ExportsGenerated         uint64    `json:"exports_generated"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
