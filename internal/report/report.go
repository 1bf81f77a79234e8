// Package report aggregates a run's per-band tallies into the summary
// table and the terminal PASSED/FAILED signal.
package report

import (
	"fmt"
	"io"

	"github.com/sells-group/locate-qa/internal/category"
	"github.com/sells-group/locate-qa/internal/classify"
	"github.com/sells-group/locate-qa/internal/model"
)

// Summary is the finalized output of one audit run.
type Summary struct {
	Categories      []model.CategoryResult `json:"categories" yaml:"categories"`
	TotalPoints     int                    `json:"total_points" yaml:"total_points"`
	ProcessedPoints int                    `json:"processed_points" yaml:"processed_points"`
	OverallPassRate float64                `json:"overall_pass_rate" yaml:"overall_pass_rate"`
	Threshold       float64                `json:"threshold" yaml:"threshold"`
	Passed          bool                   `json:"passed" yaml:"passed"`
}

// Build assembles the summary in band-table order and compares the
// overall rate against the required threshold.
func Build(table *category.Table, res *classify.Result, threshold float64) Summary {
	s := Summary{
		TotalPoints:     res.TotalPoints,
		ProcessedPoints: res.ProcessedPoints,
		OverallPassRate: res.OverallPassRate(),
		Threshold:       threshold,
	}
	s.Passed = s.OverallPassRate >= threshold

	for _, band := range table.Bands() {
		matched := res.Matched[band.Name]
		rate := 0.0
		if res.TotalPoints > 0 {
			rate = float64(matched) / float64(res.TotalPoints) * 100
		}
		s.Categories = append(s.Categories, model.CategoryResult{
			Category:     band.Name,
			PointsPassed: matched,
			PassRate:     rate,
			MaxDistance:  band.MaxDistance,
		})
	}
	return s
}

// Render writes the human-readable run summary.
func (s Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "%-20s %14s %10s %14s\n", "CATEGORY", "POINTS_PASSED", "PASS_RATE", "MAX_DISTANCE")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "%-20s %14d %9.1f%% %14.1f\n", c.Category, c.PointsPassed, c.PassRate, c.MaxDistance)
	}
	fmt.Fprintf(w, "\nTotal points:     %d\n", s.TotalPoints)
	fmt.Fprintf(w, "Processed points: %d\n", s.ProcessedPoints)
	fmt.Fprintf(w, "Overall pass rate: %.1f%% (threshold %.1f%%)\n", s.OverallPassRate, s.Threshold)
	fmt.Fprintf(w, "\nAnalysis %s\n", s.Status())
}

// Status returns the terminal run status string.
func (s Summary) Status() string {
	if s.Passed {
		return "PASSED"
	}
	return "FAILED"
}
