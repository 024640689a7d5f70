package models

import "time"

// TransportMode says how an entity's updates currently arrive
type TransportMode string

const (
	ModePolling   TransportMode = "polling"
	ModeStreaming TransportMode = "streaming"
)

// EntitySyncState is one entity's synchronized view: the latest snapshot
// and health, freshness bookkeeping, and error flags. It is owned by the
// entity's sync client; everything else receives copies.
type EntitySyncState struct {
	EntityID    string          `json:"entity_id"`
	Snapshot    *MetricSnapshot `json:"snapshot"` // nil before the first successful fetch
	Status      *HealthStatus   `json:"status"`
	Samples     []SamplePoint   `json:"samples,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
	IsLoading   bool            `json:"is_loading"`
	IsError     bool            `json:"is_error"`
	LastError   string          `json:"last_error,omitempty"`
	Mode        TransportMode   `json:"mode"`
}
