package shapeload

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// encodePolyLine converts a shapefile PolyLine to EWKB bytes with SRID
// 4326. Returns nil, nil when every part is malformed.
func encodePolyLine(pl *shp.PolyLine) ([]byte, error) {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil, nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)

	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		var end int32
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		} else {
			end = int32(len(pl.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}

		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("shapeload: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shapeload: encode EWKB")
	}
	return data, nil
}
