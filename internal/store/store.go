// Package store implements the feature storage collaborator: locate
// points, facility lines, run history, and the analysis results table.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locate-qa/internal/model"
)

// ResultsTable is the summary artifact recreated on every audit run.
const ResultsTable = "UTTO_Analysis_Results"

// ErrNotFound marks a lookup for a row that does not exist.
var ErrNotFound = eris.New("store: not found")

// UpsertStats reports what a point import did.
type UpsertStats struct {
	Inserted int // new points appended
	Updated  int // existing points with refreshed attributes
	Replaced int // deleted and re-appended after a location change
}

// Store defines the operations the audit pipeline needs from a backend.
type Store interface {
	// Migrate creates the schema and adds the derived output columns
	// to the point source if absent.
	Migrate(ctx context.Context) error
	Close() error

	// UpsertPoints inserts new points, refreshes attributes on known
	// ones, and replaces points whose coordinates moved.
	UpsertPoints(ctx context.Context, points []model.PointRecord) (UpsertStats, error)

	// ListPoints returns every locate point in insertion order.
	ListPoints(ctx context.Context) ([]model.PointRecord, error)

	// SetPointNearest records the nearest-neighbor result for a point.
	// distanceM is nil when no facility line was found.
	SetPointNearest(ctx context.Context, pointID int64, distanceM *float64, lineID int64) error

	// WritePointDerived writes the classifier's output fields back.
	WritePointDerived(ctx context.Context, p *model.PointRecord) error

	// InsertLines bulk-loads facility lines.
	InsertLines(ctx context.Context, lines []model.FacilityLine) (int64, error)

	// ListLines returns every facility line.
	ListLines(ctx context.Context) ([]model.FacilityLine, error)

	// LinePassValue resolves the pass-field attribute on one line.
	// The boolean is false when the line or its attribute is missing.
	LinePassValue(ctx context.Context, lineID int64) (string, bool, error)

	// CreateRun opens a new audit run record.
	CreateRun(ctx context.Context) (*model.Run, error)

	// FinishRun stores a run's final status and totals.
	FinishRun(ctx context.Context, run *model.Run) error

	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// ReplaceAnalysisResults drops and recreates the results table.
	ReplaceAnalysisResults(ctx context.Context, results []model.CategoryResult) error

	// ListAnalysisResults returns the current results table contents.
	ListAnalysisResults(ctx context.Context) ([]model.CategoryResult, error)
}
