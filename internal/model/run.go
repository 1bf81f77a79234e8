package model

import "time"

// RunStatus represents the current state of an audit run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one proximity audit over the point source.
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	TotalPoints     int       `json:"total_points"`
	ProcessedPoints int       `json:"processed_points"`
	OverallPassRate float64   `json:"overall_pass_rate"`
	Passed          bool      `json:"passed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CategoryResult is one row of the UTTO_Analysis_Results table.
// PointsPassed counts points that matched the band, independent of
// their validation outcome.
type CategoryResult struct {
	Category     string  `json:"category"`
	PointsPassed int     `json:"points_passed"`
	PassRate     float64 `json:"pass_rate"`     // percent of total points
	MaxDistance  float64 `json:"max_distance"`  // feet
}
