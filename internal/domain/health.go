package domain

import "time"

// HealthSummary is the per-city field completeness report.
type HealthSummary struct {
	City       string         `json:"city"`
	Total      int            `json:"total"`
	Present    map[string]int `json:"present"`
	Skipped    int            `json:"skipped"`
	Candidates int            `json:"candidates"`
	Error      string         `json:"error,omitempty"` // set when the city could not be scoped
	Finalized  bool           `json:"finalized"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}
