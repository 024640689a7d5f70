package models

import "time"

// ComparisonRow is one sampled instant across all registered entities.
// A nil value is a gap marker: that entity had no sample at this index.
// Rows are ephemeral and fully recomputed on every aggregation cycle.
type ComparisonRow struct {
	Index  int                 `json:"index"`
	Values map[string]*float64 `json:"values"`
}

// AggregationState is the dashboard-wide state: every entity's sync state
// keyed by id (EntityOrder preserves registration order for display), the
// active range and refresh cadence, global flags, and the derived
// comparison rows. Mutated only through store transitions.
type AggregationState struct {
	Entities              map[string]EntitySyncState `json:"entities"`
	EntityOrder           []string                   `json:"entity_order"`
	RangeLabel            string                     `json:"range_label"`
	RefreshIntervalMillis int64                      `json:"refresh_interval_ms"` // 0 disables auto refresh
	LastRefreshed         time.Time                  `json:"last_refreshed"`
	IsLoading             bool                       `json:"is_loading"`
	IsError               bool                       `json:"is_error"`
	LastError             string                     `json:"last_error,omitempty"`
	Rows                  []ComparisonRow            `json:"rows"`
}
