package near

import (
	"context"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rotisserie/eris"
	geompkg "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/model"
)

// metersPerDegree is the WGS84 mean length of one degree of latitude.
const metersPerDegree = 111319.49079327358

// Planar is an in-process nearest provider for the SQLite backend. It
// scans every line segment per query, which is fine for the facility
// layer sizes a single audit handles.
type Planar struct {
	lines []planarLine
}

type planarLine struct {
	id       int64
	segments []orb.LineString
}

// NewPlanar decodes the facility lines' EWKB geometries. Lines with
// unsupported geometry types are skipped with a warning.
func NewPlanar(lines []model.FacilityLine) (*Planar, error) {
	p := &Planar{}
	for _, l := range lines {
		g, err := ewkb.Unmarshal(l.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "near: decode geometry for line %s", l.ExternalID)
		}

		pl := planarLine{id: l.ID}
		switch t := g.(type) {
		case *geompkg.LineString:
			pl.segments = append(pl.segments, toOrbLineString(t.Coords()))
		case *geompkg.MultiLineString:
			for i := 0; i < t.NumLineStrings(); i++ {
				pl.segments = append(pl.segments, toOrbLineString(t.LineString(i).Coords()))
			}
		default:
			zap.L().Warn("near: skipping non-line geometry",
				zap.String("line", l.ExternalID),
			)
			continue
		}
		p.lines = append(p.lines, pl)
	}
	return p, nil
}

func toOrbLineString(coords []geompkg.Coord) orb.LineString {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		ls = append(ls, orb.Point{c[0], c[1]})
	}
	return ls
}

// Nearest scans every segment and returns the haversine distance to the
// closest point on the closest line.
func (p *Planar) Nearest(_ context.Context, lat, lon float64) (float64, int64, bool, error) {
	if len(p.lines) == 0 {
		return 0, model.NoNearLine, false, nil
	}

	pt := orb.Point{lon, lat}
	best := math.MaxFloat64
	bestID := model.NoNearLine

	for _, line := range p.lines {
		for _, seg := range line.segments {
			for i := 0; i+1 < len(seg); i++ {
				closest := closestOnSegment(pt, seg[i], seg[i+1])
				d := geo.Distance(pt, closest)
				if d < best {
					best = d
					bestID = line.id
				}
			}
		}
	}

	if bestID == model.NoNearLine {
		return 0, model.NoNearLine, false, nil
	}
	return best, bestID, true, nil
}

// closestOnSegment returns the point on segment [a, b] nearest to p.
// The parametric projection runs in a local equirectangular frame
// centered on p so degree distances approximate meters.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	pa := projectLocal(a, p)
	pb := projectLocal(b, p)

	dx := pb[0] - pa[0]
	dy := pb[1] - pa[1]
	segLen2 := dx*dx + dy*dy
	if segLen2 == 0 {
		return a
	}

	// p projects to the local origin.
	t := -(pa[0]*dx + pa[1]*dy) / segLen2
	t = math.Max(0, math.Min(1, t))

	return orb.Point{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
	}
}

// projectLocal maps q into a meter-scaled frame centered on origin.
func projectLocal(q, origin orb.Point) orb.Point {
	x := (q[0] - origin[0]) * metersPerDegree * math.Cos(origin[1]*math.Pi/180)
	y := (q[1] - origin[1]) * metersPerDegree
	return orb.Point{x, y}
}
