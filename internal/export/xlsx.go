// Package export writes analysis results to XLSX workbooks.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/locate-qa/internal/model"
	"github.com/sells-group/locate-qa/internal/report"
	"github.com/sells-group/locate-qa/internal/store"
)

var resultHeader = []string{"CATEGORY", "POINTS_PASSED", "PASS_RATE", "MAX_DISTANCE"}

// WriteResults writes the per-category analysis table and the run
// totals to a single-sheet workbook at path.
func WriteResults(path string, s report.Summary) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(store.ResultsTable)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	writeHeader(sheet)
	for _, c := range s.Categories {
		writeResultRow(sheet, c)
	}

	// Blank separator, then run totals.
	sheet.AddRow()
	addPair(sheet, "TOTAL_POINTS", float64(s.TotalPoints))
	addPair(sheet, "PROCESSED_POINTS", float64(s.ProcessedPoints))
	addPair(sheet, "OVERALL_PASS_RATE", s.OverallPassRate)
	addPair(sheet, "THRESHOLD", s.Threshold)

	row := sheet.AddRow()
	row.AddCell().Value = "STATUS"
	row.AddCell().Value = s.Status()

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteResultRows writes a stored analysis table (no run totals) to a
// single-sheet workbook at path.
func WriteResultRows(path string, results []model.CategoryResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(store.ResultsTable)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	writeHeader(sheet)
	for _, c := range results {
		writeResultRow(sheet, c)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func writeHeader(sheet *xlsx.Sheet) {
	row := sheet.AddRow()
	for _, h := range resultHeader {
		row.AddCell().Value = h
	}
}

func writeResultRow(sheet *xlsx.Sheet, c model.CategoryResult) {
	row := sheet.AddRow()
	row.AddCell().Value = c.Category
	row.AddCell().SetInt(c.PointsPassed)
	row.AddCell().SetFloat(c.PassRate)
	row.AddCell().SetFloat(c.MaxDistance)
}

func addPair(sheet *xlsx.Sheet, label string, v float64) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	row.AddCell().SetFloat(v)
}
