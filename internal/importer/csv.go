// Package importer reads locate-point CSV exports into point records.
//
// The expected layout is one row per locate point with a header row.
// Required columns: POINT_ID, LATITUDE, LONGITUDE. Optional columns:
// OVERALL_SCORE, POSITION_VALUE. Header matching is case-insensitive.
package importer

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/model"
)

var requiredColumns = []string{"point_id", "latitude", "longitude"}

// ReadPoints parses a locate-point CSV file. Rows with a missing or
// unparseable id or coordinate pair are skipped with a warning rather
// than failing the whole import.
func ReadPoints(path string) ([]model.PointRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	defer f.Close()

	return parsePoints(f)
}

func parsePoints(r io.Reader) ([]model.PointRecord, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "importer: read CSV header")
	}

	colIdx := mapColumns(header)
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("importer: CSV missing required column %q", strings.ToUpper(col))
		}
	}

	var points []model.PointRecord
	var skipped int
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			continue // skip malformed rows
		}

		id := strings.TrimSpace(getCol(record, colIdx, "point_id"))
		if id == "" {
			skipped++
			zap.L().Warn("importer: row missing point id", zap.Int("line", line))
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(getCol(record, colIdx, "latitude")), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(getCol(record, colIdx, "longitude")), 64)
		if latErr != nil || lonErr != nil {
			skipped++
			zap.L().Warn("importer: row has unparseable coordinates",
				zap.Int("line", line), zap.String("point_id", id))
			continue
		}

		points = append(points, model.PointRecord{
			ExternalID:    id,
			Latitude:      lat,
			Longitude:     lon,
			OverallScore:  parseFloatPtr(getCol(record, colIdx, "overall_score")),
			PositionValue: parseStringPtr(getCol(record, colIdx, "position_value")),
			NearLineID:    model.NoNearLine,
		})
	}

	if skipped > 0 {
		zap.L().Warn("importer: skipped rows", zap.Int("count", skipped))
	}

	return points, nil
}

// mapColumns maps lowercased, trimmed header names to their index.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseStringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
