package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locate-qa/internal/db"
	"github.com/sells-group/locate-qa/internal/model"
)

// PostgresStore implements Store on PostGIS. Line geometries live in a
// geometry(Geometry,4326) column so the nearest-neighbor provider can
// run KNN queries against them.
type PostgresStore struct {
	pool  db.Pool
	close func()
}

// NewPostgres wraps an existing pool. closeFn may be nil (tests).
func NewPostgres(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, close: closeFn}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS locate;

CREATE TABLE IF NOT EXISTS locate.points (
	id              BIGSERIAL PRIMARY KEY,
	external_id     TEXT NOT NULL UNIQUE,
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	overall_score   DOUBLE PRECISION,
	position_value  TEXT,
	near_distance_m DOUBLE PRECISION,
	near_line_id    BIGINT NOT NULL DEFAULT -1
);

CREATE TABLE IF NOT EXISTS locate.lines (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL,
	pass_value  TEXT,
	geom        geometry(Geometry, 4326) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locate_lines_geom ON locate.lines USING GIST (geom);

CREATE TABLE IF NOT EXISTS locate.runs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'running',
	total_points      INTEGER NOT NULL DEFAULT 0,
	processed_points  INTEGER NOT NULL DEFAULT 0,
	overall_pass_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	passed            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE locate.points ADD COLUMN IF NOT EXISTS "PROXIMITY_TO_FACILITIES" DOUBLE PRECISION;
ALTER TABLE locate.points ADD COLUMN IF NOT EXISTS "PROXIMITY_RANK" TEXT;
ALTER TABLE locate.points ADD COLUMN IF NOT EXISTS "AUTHENTICATED" TEXT;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *PostgresStore) UpsertPoints(ctx context.Context, points []model.PointRecord) (UpsertStats, error) {
	var stats UpsertStats

	for _, p := range points {
		var id int64
		var lat, lon float64
		err := s.pool.QueryRow(ctx,
			`SELECT id, latitude, longitude FROM locate.points WHERE external_id = $1`,
			p.ExternalID,
		).Scan(&id, &lat, &lon)

		switch {
		case eris.Is(err, pgx.ErrNoRows):
			if err := s.insertPoint(ctx, p); err != nil {
				return stats, err
			}
			stats.Inserted++

		case err != nil:
			return stats, eris.Wrapf(err, "postgres: look up point %s", p.ExternalID)

		case lat != p.Latitude || lon != p.Longitude:
			if _, err := s.pool.Exec(ctx, `DELETE FROM locate.points WHERE id = $1`, id); err != nil {
				return stats, eris.Wrapf(err, "postgres: delete moved point %s", p.ExternalID)
			}
			if err := s.insertPoint(ctx, p); err != nil {
				return stats, err
			}
			stats.Replaced++

		default:
			if _, err := s.pool.Exec(ctx,
				`UPDATE locate.points SET overall_score = $1, position_value = $2 WHERE id = $3`,
				p.OverallScore, p.PositionValue, id,
			); err != nil {
				return stats, eris.Wrapf(err, "postgres: update point %s", p.ExternalID)
			}
			stats.Updated++
		}
	}

	return stats, nil
}

func (s *PostgresStore) insertPoint(ctx context.Context, p model.PointRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locate.points (external_id, latitude, longitude, overall_score, position_value)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ExternalID, p.Latitude, p.Longitude, p.OverallScore, p.PositionValue,
	)
	return eris.Wrapf(err, "postgres: insert point %s", p.ExternalID)
}

const pgPointColumns = `id, external_id, latitude, longitude, overall_score, position_value,
	near_distance_m, near_line_id, "PROXIMITY_TO_FACILITIES", "PROXIMITY_RANK", "AUTHENTICATED"`

func (s *PostgresStore) ListPoints(ctx context.Context) ([]model.PointRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPointColumns+` FROM locate.points ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list points")
	}
	defer rows.Close()

	var points []model.PointRecord
	for rows.Next() {
		var p model.PointRecord
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Latitude, &p.Longitude,
			&p.OverallScore, &p.PositionValue, &p.NearDistanceM, &p.NearLineID,
			&p.ProximityFeet, &p.ProximityRank, &p.Authenticated,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate points")
}

func (s *PostgresStore) SetPointNearest(ctx context.Context, pointID int64, distanceM *float64, lineID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE locate.points SET near_distance_m = $1, near_line_id = $2 WHERE id = $3`,
		distanceM, lineID, pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set nearest for point %d", pointID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "point %d", pointID)
	}
	return nil
}

func (s *PostgresStore) WritePointDerived(ctx context.Context, p *model.PointRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE locate.points
		 SET "PROXIMITY_TO_FACILITIES" = $1, "PROXIMITY_RANK" = $2, "AUTHENTICATED" = $3
		 WHERE id = $4`,
		p.ProximityFeet, p.ProximityRank, p.Authenticated, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: write derived fields for point %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "point %d", p.ID)
	}
	return nil
}

func (s *PostgresStore) InsertLines(ctx context.Context, lines []model.FacilityLine) (int64, error) {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{l.ExternalID, l.PassValue, l.Geom})
	}
	return db.CopyFromSchema(ctx, s.pool, "locate", "lines",
		[]string{"external_id", "pass_value", "geom"}, rows)
}

func (s *PostgresStore) ListLines(ctx context.Context) ([]model.FacilityLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, external_id, pass_value, ST_AsEWKB(geom) FROM locate.lines ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lines")
	}
	defer rows.Close()

	var lines []model.FacilityLine
	for rows.Next() {
		var l model.FacilityLine
		if err := rows.Scan(&l.ID, &l.ExternalID, &l.PassValue, &l.Geom); err != nil {
			return nil, eris.Wrap(err, "postgres: scan line")
		}
		lines = append(lines, l)
	}
	return lines, eris.Wrap(rows.Err(), "postgres: iterate lines")
}

func (s *PostgresStore) LinePassValue(ctx context.Context, lineID int64) (string, bool, error) {
	var pass *string
	err := s.pool.QueryRow(ctx,
		`SELECT pass_value FROM locate.lines WHERE id = $1`,
		lineID,
	).Scan(&pass)
	if eris.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: pass value for line %d", lineID)
	}
	if pass == nil {
		return "", false, nil
	}
	return *pass, true, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO locate.runs (id, status, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE locate.runs
		 SET status = $1, total_points = $2, processed_points = $3, overall_pass_rate = $4, passed = $5, updated_at = $6
		 WHERE id = $7`,
		string(run.Status), run.TotalPoints, run.ProcessedPoints,
		run.OverallPassRate, run.Passed, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, total_points, processed_points, overall_pass_rate, passed, created_at, updated_at
		 FROM locate.runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Status, &r.TotalPoints, &r.ProcessedPoints,
		&r.OverallPassRate, &r.Passed, &r.CreatedAt, &r.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, total_points, processed_points, overall_pass_rate, passed, created_at, updated_at
		 FROM locate.runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Status, &r.TotalPoints, &r.ProcessedPoints,
			&r.OverallPassRate, &r.Passed, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) ReplaceAnalysisResults(ctx context.Context, results []model.CategoryResult) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS locate."`+ResultsTable+`"`); err != nil {
		return eris.Wrap(err, "postgres: drop results table")
	}
	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE locate."`+ResultsTable+`" (
			seq             BIGINT GENERATED ALWAYS AS IDENTITY,
			"CATEGORY"      TEXT NOT NULL,
			"POINTS_PASSED" INTEGER NOT NULL,
			"PASS_RATE"     DOUBLE PRECISION NOT NULL,
			"MAX_DISTANCE"  DOUBLE PRECISION NOT NULL
		)`,
	); err != nil {
		return eris.Wrap(err, "postgres: create results table")
	}

	for _, r := range results {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO locate."`+ResultsTable+`" ("CATEGORY", "POINTS_PASSED", "PASS_RATE", "MAX_DISTANCE")
			 VALUES ($1, $2, $3, $4)`,
			r.Category, r.PointsPassed, r.PassRate, r.MaxDistance,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert result %s", r.Category)
		}
	}
	return nil
}

func (s *PostgresStore) ListAnalysisResults(ctx context.Context) ([]model.CategoryResult, error) {
	// The results table only exists after the first audit.
	var reg *string
	if err := s.pool.QueryRow(ctx,
		`SELECT to_regclass('locate."`+ResultsTable+`"')::text`,
	).Scan(&reg); err != nil {
		return nil, eris.Wrap(err, "postgres: check results table")
	}
	if reg == nil {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT "CATEGORY", "POINTS_PASSED", "PASS_RATE", "MAX_DISTANCE" FROM locate."`+ResultsTable+`" ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.CategoryResult
	for rows.Next() {
		var r model.CategoryResult
		if err := rows.Scan(&r.Category, &r.PointsPassed, &r.PassRate, &r.MaxDistance); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate results")
}
