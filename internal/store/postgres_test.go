package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locate-qa/internal/model"
)

func TestPostgres_SetPointNearest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)

	mock.ExpectExec("UPDATE locate.points SET near_distance_m").
		WithArgs(fptr(12.5), int64(7), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = st.SetPointNearest(context.Background(), 1, fptr(12.5), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetPointNearest_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)

	mock.ExpectExec("UPDATE locate.points SET near_distance_m").
		WithArgs((*float64)(nil), model.NoNearLine, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = st.SetPointNearest(context.Background(), 99, nil, model.NoNearLine)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgres_WritePointDerived(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)
	p := &model.PointRecord{
		ID:            3,
		ProximityFeet: fptr(3.28),
		ProximityRank: sptr("Good"),
		Authenticated: sptr("No"),
	}

	mock.ExpectExec("UPDATE locate.points").
		WithArgs(p.ProximityFeet, p.ProximityRank, p.Authenticated, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.WritePointDerived(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LinePassValue_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)

	mock.ExpectQuery("SELECT pass_value FROM locate.lines").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"pass_value"}).AddRow(sptr("P")))

	v, ok, err := st.LinePassValue(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "P", v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LinePassValue_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)

	mock.ExpectQuery("SELECT pass_value FROM locate.lines").
		WillReturnError(fmt.Errorf("connection refused"))

	_, _, err = st.LinePassValue(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass value for line 7")
}

func TestPostgres_InsertLines_Copy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)
	lines := []model.FacilityLine{
		{ExternalID: "main-1", PassValue: sptr("P"), Geom: []byte{1, 2}},
		{ExternalID: "main-2", Geom: []byte{3, 4}},
	}

	mock.ExpectCopyFrom(pgx.Identifier{"locate", "lines"}, []string{"external_id", "pass_value", "geom"}).
		WillReturnResult(2)

	n, err := st.InsertLines(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceAnalysisResults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgres(mock, nil)

	mock.ExpectExec("DROP TABLE IF EXISTS").
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO").
		WithArgs("A", 3, 30.0, 5.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = st.ReplaceAnalysisResults(context.Background(), []model.CategoryResult{
		{Category: "A", PointsPassed: 3, PassRate: 30, MaxDistance: 5},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
