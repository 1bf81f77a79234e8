package near

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locate-qa/internal/model"
)

func TestPostGIS_Nearest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPostGIS(mock)

	mock.ExpectQuery("ORDER BY fl.geom").
		WithArgs(-90.05, 35.15).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).AddRow(int64(7), 12.34))

	distM, id, ok, err := p.Nearest(context.Background(), 35.15, -90.05)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.InDelta(t, 12.34, distM, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGIS_Nearest_NoLines(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPostGIS(mock)

	mock.ExpectQuery("ORDER BY fl.geom").
		WithArgs(-90.05, 35.15).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}))

	_, id, ok, err := p.Nearest(context.Background(), 35.15, -90.05)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.NoNearLine, id)
}
