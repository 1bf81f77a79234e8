// Package shapeload reads facility-line shapefiles into store rows.
package shapeload

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/model"
)

// Options selects the shapefile attributes to carry into the store.
type Options struct {
	IDField   string // attribute holding the line identifier; required
	PassField string // optional pass/fail text attribute
}

// ParseLines reads a polyline shapefile and returns facility lines with
// EWKB geometries. Records with no geometry or an unsupported shape
// type are skipped.
func ParseLines(shpPath string, opts Options) ([]model.FacilityLine, error) {
	if opts.IDField == "" {
		return nil, eris.New("shapeload: id field is required")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapeload: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := fieldIdx[strings.ToLower(opts.IDField)]
	if !ok {
		return nil, eris.Errorf("shapeload: shapefile has no %q attribute", opts.IDField)
	}
	passIdx := -1
	if opts.PassField != "" {
		passIdx, ok = fieldIdx[strings.ToLower(opts.PassField)]
		if !ok {
			return nil, eris.Errorf("shapeload: shapefile has no %q attribute", opts.PassField)
		}
	}

	var lines []model.FacilityLine
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		pl, ok := shape.(*shp.PolyLine)
		if !ok || pl == nil {
			skipped++
			continue
		}
		wkb, err := encodePolyLine(pl)
		if err != nil || wkb == nil {
			skipped++
			continue
		}

		line := model.FacilityLine{
			ExternalID: attribute(reader, idIdx),
			Geom:       wkb,
		}
		if passIdx >= 0 {
			if v := attribute(reader, passIdx); v != "" {
				line.PassValue = &v
			}
		}
		lines = append(lines, line)
	}

	if skipped > 0 {
		zap.L().Debug("shapeload: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return lines, nil
}

func attribute(reader *shp.Reader, idx int) string {
	val := strings.TrimRight(reader.Attribute(idx), "\x00")
	return strings.TrimSpace(val)
}
