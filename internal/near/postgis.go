package near

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locate-qa/internal/db"
	"github.com/sells-group/locate-qa/internal/model"
)

// PostGIS answers nearest-line queries with a KNN index scan against
// the locate.lines table.
type PostGIS struct {
	pool db.Pool
}

// NewPostGIS wraps a pool.
func NewPostGIS(pool db.Pool) *PostGIS {
	return &PostGIS{pool: pool}
}

func (p *PostGIS) Nearest(ctx context.Context, lat, lon float64) (float64, int64, bool, error) {
	query := `
		SELECT
			fl.id,
			ST_Distance(fl.geom::geography, pt::geography) AS distance_m
		FROM locate.lines fl,
			 ST_SetSRID(ST_MakePoint($1, $2), 4326) AS pt
		ORDER BY fl.geom <-> pt
		LIMIT 1`

	var id int64
	var distM float64
	err := p.pool.QueryRow(ctx, query, lon, lat).Scan(&id, &distM)
	if eris.Is(err, pgx.ErrNoRows) {
		return 0, model.NoNearLine, false, nil
	}
	if err != nil {
		return 0, model.NoNearLine, false, eris.Wrap(err, "near: nearest line query")
	}
	return distM, id, true, nil
}
