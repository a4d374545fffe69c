package schema

import "time"

// StoreStatus represents the status of the result store.
type StoreStatus struct {
	Backend            string           `json:"backend"`
	Connected          bool             `json:"connected"`
	SchemaVersion      uint             `json:"schema_version"`
	TotalInvocations   int              `json:"total_invocations"`
	LastInvocationID   string           `json:"last_invocation_id"`
	LastInvocationTime time.Time        `json:"last_invocation_time"`
	LastMode           Mode             `json:"last_mode"`
	Complete           bool             `json:"complete"`
	TotalRuns          int              `json:"total_runs"`
	HasCombined        bool             `json:"has_combined"`
	TableSizes         map[string]int64 `json:"table_sizes"`
}

// InvocationRecord represents a row from the skysig_invocations table.
type InvocationRecord struct {
	InvocationID string     `json:"invocation_id"`
	Mode         Mode       `json:"mode"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	PairCount    int        `json:"pair_count"`
	Complete     bool       `json:"complete"`
}

// ObjectInfo describes one stored object without its payload.
type ObjectInfo struct {
	RunID    int      `json:"run_id"`
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
}
