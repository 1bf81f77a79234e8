package main

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locate-qa/internal/category"
)

func TestParseCategoryFlag(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    category.Spec
		wantErr bool
	}{
		{
			name: "name and distance only",
			raw:  "Excellent:5",
			want: category.Spec{Name: "Excellent", MaxDistance: 5},
		},
		{
			name: "with pass values",
			raw:  "Good:15:P|F",
			want: category.Spec{Name: "Good", MaxDistance: 15, PassValues: []string{"P", "F"}},
		},
		{
			name: "with auth",
			raw:  "Good:15:P|F:auth",
			want: category.Spec{Name: "Good", MaxDistance: 15, PassValues: []string{"P", "F"}, RequiresAuthentication: true},
		},
		{
			name: "auth without pass values",
			raw:  "Excellent:5::auth",
			want: category.Spec{Name: "Excellent", MaxDistance: 5, RequiresAuthentication: true},
		},
		{
			name: "explicit noauth",
			raw:  "Fair:30:P:noauth",
			want: category.Spec{Name: "Fair", MaxDistance: 30, PassValues: []string{"P"}},
		},
		{
			name:    "missing distance",
			raw:     "Excellent",
			wantErr: true,
		},
		{
			name:    "bad distance",
			raw:     "Excellent:five",
			wantErr: true,
		},
		{
			name:    "bad auth token",
			raw:     "Excellent:5:P:maybe",
			wantErr: true,
		},
		{
			name:    "too many fields",
			raw:     "Excellent:5:P:auth:extra",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCategoryFlag(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, category.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableHasPassValues(t *testing.T) {
	plain, err := category.Build([]category.Spec{
		{Name: "A", MaxDistance: 5},
		{Name: "B", MaxDistance: 10},
	})
	require.NoError(t, err)
	assert.False(t, tableHasPassValues(plain))

	gated, err := category.Build([]category.Spec{
		{Name: "A", MaxDistance: 5},
		{Name: "B", MaxDistance: 10, PassValues: []string{"P"}},
	})
	require.NoError(t, err)
	assert.True(t, tableHasPassValues(gated))
}
