package models

import "time"

// Health is the overall health classification of an entity
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthError   Health = "error"
	HealthUnknown Health = "unknown"
)

// Alert severity levels
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents one active condition on an entity
type Alert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// HealthStatus represents an entity's health independent of its metric
// cadence; it can change without a new MetricSnapshot arriving.
type HealthStatus struct {
	Status        Health    `json:"status"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	Alerts        []Alert   `json:"alerts,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
