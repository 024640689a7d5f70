package models

import "time"

// CPUMetrics represents CPU utilization for an entity
type CPUMetrics struct {
	UsagePercent float64   `json:"usage_percent"`
	PerCore      []float64 `json:"per_core,omitempty"`
	CoreCount    int       `json:"core_count"`
}

// MemoryMetrics represents memory utilization for an entity
type MemoryMetrics struct {
	UsagePercent float64 `json:"usage_percent"`
	UsedBytes    uint64  `json:"used_bytes"`
	TotalBytes   uint64  `json:"total_bytes"`
	AvailBytes   uint64  `json:"avail_bytes"`
}

// DiskMetrics represents disk utilization for an entity
type DiskMetrics struct {
	Path         string  `json:"path"`
	UsagePercent float64 `json:"usage_percent"`
	UsedBytes    uint64  `json:"used_bytes"`
	TotalBytes   uint64  `json:"total_bytes"`
}

// NetworkMetrics represents network counters and rates for an entity
type NetworkMetrics struct {
	BytesSent     uint64  `json:"bytes_sent"`
	BytesRecv     uint64  `json:"bytes_recv"`
	BytesSentRate float64 `json:"bytes_sent_rate"` // bytes/sec
	BytesRecvRate float64 `json:"bytes_recv_rate"` // bytes/sec
}

// MetricSnapshot is one complete, immutable set of measurements for an
// entity at a point in time. Producers build a new snapshot for every
// reading; consumers replace, never mutate.
type MetricSnapshot struct {
	Timestamp    time.Time      `json:"timestamp"`
	CPU          CPUMetrics     `json:"cpu"`
	Memory       MemoryMetrics  `json:"memory"`
	Disk         DiskMetrics    `json:"disk"`
	Network      NetworkMetrics `json:"network"`
	ProcessCount int            `json:"process_count"`
}

// SamplePoint is one entry in an entity's rolling sample ring, kept for
// side-by-side chart derivation.
type SamplePoint struct {
	Timestamp time.Time `json:"timestamp"`
	CPU       float64   `json:"cpu"`
	Memory    float64   `json:"memory"`
}
