package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/locate-qa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS locate_points (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id     TEXT NOT NULL UNIQUE,
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	overall_score   REAL,
	position_value  TEXT,
	near_distance_m REAL,
	near_line_id    INTEGER NOT NULL DEFAULT -1
);

CREATE TABLE IF NOT EXISTS facility_lines (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL,
	pass_value  TEXT,
	geom        BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'running',
	total_points      INTEGER NOT NULL DEFAULT 0,
	processed_points  INTEGER NOT NULL DEFAULT 0,
	overall_pass_rate REAL NOT NULL DEFAULT 0,
	passed            INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_locate_points_near_line ON locate_points(near_line_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// derivedColumns are the classifier output fields added to the point
// source if absent.
var derivedColumns = []struct {
	name string
	typ  string
}{
	{"PROXIMITY_TO_FACILITIES", "REAL"},
	{"PROXIMITY_RANK", "TEXT"},
	{"AUTHENTICATED", "TEXT"},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return s.ensureDerivedColumns(ctx)
}

func (s *SQLiteStore) ensureDerivedColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(locate_points)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: table_info")
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return eris.Wrap(err, "sqlite: scan table_info")
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: iterate table_info")
	}

	for _, col := range derivedColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE locate_points ADD COLUMN `+col.name+` `+col.typ,
		); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s", col.name)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPoints(ctx context.Context, points []model.PointRecord) (UpsertStats, error) {
	var stats UpsertStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range points {
		var id int64
		var lat, lon float64
		err := tx.QueryRowContext(ctx,
			`SELECT id, latitude, longitude FROM locate_points WHERE external_id = ?`,
			p.ExternalID,
		).Scan(&id, &lat, &lon)

		switch {
		case err == sql.ErrNoRows:
			if err := insertPoint(ctx, tx, p); err != nil {
				return stats, err
			}
			stats.Inserted++

		case err != nil:
			return stats, eris.Wrapf(err, "sqlite: look up point %s", p.ExternalID)

		case lat != p.Latitude || lon != p.Longitude:
			// Location change: delete and re-append, dropping any stale
			// nearest-line and derived values with the old row.
			if _, err := tx.ExecContext(ctx, `DELETE FROM locate_points WHERE id = ?`, id); err != nil {
				return stats, eris.Wrapf(err, "sqlite: delete moved point %s", p.ExternalID)
			}
			if err := insertPoint(ctx, tx, p); err != nil {
				return stats, err
			}
			stats.Replaced++

		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE locate_points SET overall_score = ?, position_value = ? WHERE id = ?`,
				p.OverallScore, p.PositionValue, id,
			); err != nil {
				return stats, eris.Wrapf(err, "sqlite: update point %s", p.ExternalID)
			}
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, eris.Wrap(err, "sqlite: commit upsert")
	}
	return stats, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPoint(ctx context.Context, tx execer, p model.PointRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO locate_points (external_id, latitude, longitude, overall_score, position_value)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ExternalID, p.Latitude, p.Longitude, p.OverallScore, p.PositionValue,
	)
	return eris.Wrapf(err, "sqlite: insert point %s", p.ExternalID)
}

const pointColumns = `id, external_id, latitude, longitude, overall_score, position_value,
	near_distance_m, near_line_id, PROXIMITY_TO_FACILITIES, PROXIMITY_RANK, AUTHENTICATED`

func (s *SQLiteStore) ListPoints(ctx context.Context) ([]model.PointRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pointColumns+` FROM locate_points ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list points")
	}
	defer rows.Close()

	var points []model.PointRecord
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

func (s *SQLiteStore) SetPointNearest(ctx context.Context, pointID int64, distanceM *float64, lineID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE locate_points SET near_distance_m = ?, near_line_id = ? WHERE id = ?`,
		distanceM, lineID, pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set nearest for point %d", pointID)
	}
	return checkRowsAffected(res, "point", pointID)
}

func (s *SQLiteStore) WritePointDerived(ctx context.Context, p *model.PointRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE locate_points
		 SET PROXIMITY_TO_FACILITIES = ?, PROXIMITY_RANK = ?, AUTHENTICATED = ?
		 WHERE id = ?`,
		p.ProximityFeet, p.ProximityRank, p.Authenticated, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: write derived fields for point %d", p.ID)
	}
	return checkRowsAffected(res, "point", p.ID)
}

func (s *SQLiteStore) InsertLines(ctx context.Context, lines []model.FacilityLine) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert lines")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO facility_lines (external_id, pass_value, geom) VALUES (?, ?, ?)`,
			l.ExternalID, l.PassValue, l.Geom,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert line %s", l.ExternalID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit insert lines")
	}
	return n, nil
}

func (s *SQLiteStore) ListLines(ctx context.Context) ([]model.FacilityLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, pass_value, geom FROM facility_lines ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lines")
	}
	defer rows.Close()

	var lines []model.FacilityLine
	for rows.Next() {
		var l model.FacilityLine
		var pass sql.NullString
		if err := rows.Scan(&l.ID, &l.ExternalID, &pass, &l.Geom); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan line")
		}
		if pass.Valid {
			l.PassValue = &pass.String
		}
		lines = append(lines, l)
	}
	return lines, eris.Wrap(rows.Err(), "sqlite: iterate lines")
}

func (s *SQLiteStore) LinePassValue(ctx context.Context, lineID int64) (string, bool, error) {
	var pass sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT pass_value FROM facility_lines WHERE id = ?`,
		lineID,
	).Scan(&pass)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: pass value for line %d", lineID)
	}
	if !pass.Valid {
		return "", false, nil
	}
	return pass.String, true, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, total_points = ?, processed_points = ?, overall_pass_rate = ?, passed = ?, updated_at = ?
		 WHERE id = ?`,
		string(run.Status), run.TotalPoints, run.ProcessedPoints,
		run.OverallPassRate, boolToInt(run.Passed), run.UpdatedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffectedStr(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, total_points, processed_points, overall_pass_rate, passed, created_at, updated_at
		 FROM runs WHERE id = ?`,
		id,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, total_points, processed_points, overall_pass_rate, passed, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ReplaceAnalysisResults(ctx context.Context, results []model.CategoryResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace results")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+ResultsTable); err != nil {
		return eris.Wrap(err, "sqlite: drop results table")
	}
	if _, err := tx.ExecContext(ctx,
		`CREATE TABLE `+ResultsTable+` (
			CATEGORY      TEXT NOT NULL,
			POINTS_PASSED INTEGER NOT NULL,
			PASS_RATE     REAL NOT NULL,
			MAX_DISTANCE  REAL NOT NULL
		)`,
	); err != nil {
		return eris.Wrap(err, "sqlite: create results table")
	}

	for _, r := range results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+ResultsTable+` (CATEGORY, POINTS_PASSED, PASS_RATE, MAX_DISTANCE) VALUES (?, ?, ?, ?)`,
			r.Category, r.PointsPassed, r.PassRate, r.MaxDistance,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.Category)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace results")
}

func (s *SQLiteStore) ListAnalysisResults(ctx context.Context) ([]model.CategoryResult, error) {
	// The results table only exists after the first audit.
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, ResultsTable,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: check results table")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT CATEGORY, POINTS_PASSED, PASS_RATE, MAX_DISTANCE FROM `+ResultsTable+` ORDER BY rowid`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.CategoryResult
	for rows.Next() {
		var r model.CategoryResult
		if err := rows.Scan(&r.Category, &r.PointsPassed, &r.PassRate, &r.MaxDistance); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

// helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

func checkRowsAffectedStr(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPoint(row scannable) (*model.PointRecord, error) {
	var p model.PointRecord
	var score, nearM, proxFt sql.NullFloat64
	var pos, rank, auth sql.NullString

	err := row.Scan(&p.ID, &p.ExternalID, &p.Latitude, &p.Longitude,
		&score, &pos, &nearM, &p.NearLineID, &proxFt, &rank, &auth)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan point")
	}

	if score.Valid {
		p.OverallScore = &score.Float64
	}
	if pos.Valid {
		p.PositionValue = &pos.String
	}
	if nearM.Valid {
		p.NearDistanceM = &nearM.Float64
	}
	if proxFt.Valid {
		p.ProximityFeet = &proxFt.Float64
	}
	if rank.Valid {
		p.ProximityRank = &rank.String
	}
	if auth.Valid {
		p.Authenticated = &auth.String
	}
	return &p, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var passed int
	err := row.Scan(&r.ID, &r.Status, &r.TotalPoints, &r.ProcessedPoints,
		&r.OverallPassRate, &passed, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Passed = passed != 0
	return &r, nil
}
