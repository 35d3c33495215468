package cache

import "time"

// Manifest records everything needed to know, without re-running a
// candidate, what a cached result actually represents: the exact
// parameters, seed, dataset, level, and execution preset that produced it.
type Manifest struct {
	RunID         string `json:"run_id"`
	CandidateHash string `json:"candidate_hash"`
	DatasetHash   string `json:"dataset_hash"`
	Level         string `json:"level"`
	ExecutionPreset string `json:"execution_preset"`

	Parameters map[string]any `json:"parameters"`
	Seed       int64          `json:"seed"`

	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`

	ComponentIdentifiers map[string]string `json:"component_identifiers"`
	Diagnostics          map[string]any    `json:"diagnostics,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
