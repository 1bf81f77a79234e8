package classify

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locate-qa/internal/category"
	"github.com/sells-group/locate-qa/internal/model"
)

func mustTable(t *testing.T, specs ...category.Spec) *category.Table {
	t.Helper()
	tbl, err := category.Build(specs)
	require.NoError(t, err)
	return tbl
}

func feetToMeters(ft float64) float64 {
	return ft / MetersToFeet
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

// passing point relative to the default rules below
func passingPoint(distM float64) *model.PointRecord {
	return &model.PointRecord{
		ExternalID:    "pt-1",
		OverallScore:  fptr(90),
		PositionValue: sptr("R"),
		NearDistanceM: &distM,
		NearLineID:    model.NoNearLine,
	}
}

func defaultRules() Rules {
	return Rules{
		MinLocateScore: 70,
		ValidGPSCodes:  GPSCodeSet([]string{"R", "F"}),
	}
}

func TestClassify_BandBoundaries(t *testing.T) {
	// Upper bound inclusive, lower bound exclusive.
	tbl := mustTable(t,
		category.Spec{Name: "A", MaxDistance: 1},
		category.Spec{Name: "B", MaxDistance: 5},
		category.Spec{Name: "C", MaxDistance: 10},
	)

	tests := []struct {
		name string
		feet float64
		rank string
	}{
		{"inside first band", 0.5, "A"},
		{"first band upper bound", 1.0, "A"},
		{"just past first bound", 1.01, "B"},
		{"second band upper bound exactly", 5.0, "B"},
		{"inside third band", 7.5, "C"},
		{"last band upper bound", 10.0, "C"},
		{"beyond all bands", 10.01, UnclassifiedRank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tbl, defaultRules())
			p := passingPoint(feetToMeters(tt.feet))
			require.NoError(t, c.Classify(p))
			require.NotNil(t, p.ProximityRank)
			assert.Equal(t, tt.rank, *p.ProximityRank)
		})
	}
}

func TestClassify_UnitConversion(t *testing.T) {
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10})
	c := New(tbl, defaultRules())

	p := passingPoint(1.0) // one meter
	require.NoError(t, c.Classify(p))

	require.NotNil(t, p.ProximityFeet)
	assert.Equal(t, 3.28, *p.ProximityFeet)
}

func TestClassify_TallyIsUnconditional(t *testing.T) {
	// A point that fails the locate gate still counts for its band.
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10, RequiresAuthentication: true})
	c := New(tbl, defaultRules())

	p := passingPoint(1.0)
	p.OverallScore = fptr(10) // below the 70 threshold
	require.NoError(t, c.Classify(p))

	assert.Equal(t, 1, c.Result().Matched["A"])
	require.NotNil(t, p.Authenticated)
	assert.Equal(t, AuthNo, *p.Authenticated)
}

func TestClassify_AuthenticationGates(t *testing.T) {
	lines := map[int64]string{7: "F", 8: "P"}
	lookup := func(id int64) (string, bool, error) {
		v, ok := lines[id]
		return v, ok, nil
	}

	tests := []struct {
		name   string
		lineID int64
		want   string
	}{
		{"attribute outside pass set", 7, AuthNo},
		{"attribute in pass set", 8, AuthYes},
		{"no nearest line match, gate not applied", model.NoNearLine, AuthYes},
		{"lookup miss, gate not applied", 99, AuthYes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustTable(t, category.Spec{
				Name:                   "A",
				MaxDistance:            10,
				PassValues:             []string{"P"},
				RequiresAuthentication: true,
			})
			rules := defaultRules()
			rules.PassLookup = lookup
			c := New(tbl, rules)

			p := passingPoint(1.0)
			p.NearLineID = tt.lineID
			require.NoError(t, c.Classify(p))

			require.NotNil(t, p.Authenticated)
			assert.Equal(t, tt.want, *p.Authenticated)
		})
	}
}

func TestClassify_AuthenticationNeedsBothGates(t *testing.T) {
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10, RequiresAuthentication: true})

	tests := []struct {
		name  string
		score *float64
		gps   *string
		want  string
	}{
		{"both gates hold", fptr(70), sptr("R"), AuthYes},
		{"score below threshold", fptr(69.9), sptr("R"), AuthNo},
		{"score missing", nil, sptr("R"), AuthNo},
		{"gps code invalid", fptr(90), sptr("A"), AuthNo},
		{"gps code missing", fptr(90), nil, AuthNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tbl, defaultRules())
			p := passingPoint(1.0)
			p.OverallScore = tt.score
			p.PositionValue = tt.gps
			require.NoError(t, c.Classify(p))
			require.NotNil(t, p.Authenticated)
			assert.Equal(t, tt.want, *p.Authenticated)
		})
	}
}

func TestClassify_NoAuthenticationFlag(t *testing.T) {
	// Passing every gate still yields "No" when the band does not
	// require authentication.
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10})
	c := New(tbl, defaultRules())

	p := passingPoint(1.0)
	require.NoError(t, c.Classify(p))
	assert.Equal(t, AuthNo, *p.Authenticated)
}

func TestClassify_NullDistanceSkipped(t *testing.T) {
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10})
	c := New(tbl, defaultRules())

	p := passingPoint(0)
	p.NearDistanceM = nil
	require.NoError(t, c.Classify(p))

	assert.Nil(t, p.ProximityFeet)
	assert.Nil(t, p.ProximityRank)
	assert.Nil(t, p.Authenticated)
	assert.Equal(t, 1, c.Result().TotalPoints)
	assert.Equal(t, 0, c.Result().ProcessedPoints)
}

func TestClassify_UnclassifiedExcludedFromTallies(t *testing.T) {
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10})
	c := New(tbl, defaultRules())

	p := passingPoint(feetToMeters(50))
	require.NoError(t, c.Classify(p))

	assert.Equal(t, UnclassifiedRank, *p.ProximityRank)
	assert.Equal(t, 0, c.Result().MatchedTotal())
	assert.Equal(t, 1, c.Result().TotalPoints)
	assert.Equal(t, 1, c.Result().ProcessedPoints)
}

func TestClassify_DeclarationOrderMatching(t *testing.T) {
	// Bands declared out of ascending order: the lower bound advances
	// to each visited band's max distance unconditionally, so a point
	// below the second band's bound can fall into the gap.
	tbl := mustTable(t,
		category.Spec{Name: "wide", MaxDistance: 50},
		category.Spec{Name: "narrow", MaxDistance: 10},
	)
	c := New(tbl, defaultRules())

	p := passingPoint(feetToMeters(20))
	require.NoError(t, c.Classify(p))
	assert.Equal(t, "wide", *p.ProximityRank)

	// 8 ft is below both bounds but past neither declared band: the
	// first band matches since 0 < 8 <= 50.
	p2 := passingPoint(feetToMeters(8))
	require.NoError(t, c.Classify(p2))
	assert.Equal(t, "wide", *p2.ProximityRank)
}

func TestClassify_LookupErrorIsFatal(t *testing.T) {
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10, PassValues: []string{"P"}})
	rules := defaultRules()
	rules.PassLookup = func(int64) (string, bool, error) {
		return "", false, eris.New("store: connection lost")
	}
	c := New(tbl, rules)

	p := passingPoint(1.0)
	p.NearLineID = 3
	err := c.Classify(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass-field lookup")
}

func TestClassify_LookupMemoized(t *testing.T) {
	calls := 0
	tbl := mustTable(t, category.Spec{Name: "A", MaxDistance: 10, PassValues: []string{"P"}})
	rules := defaultRules()
	rules.PassLookup = func(int64) (string, bool, error) {
		calls++
		return "P", true, nil
	}
	c := New(tbl, rules)

	for i := 0; i < 3; i++ {
		p := passingPoint(1.0)
		p.NearLineID = 42
		require.NoError(t, c.Classify(p))
	}
	assert.Equal(t, 1, calls)
}

func TestResult_OverallPassRate(t *testing.T) {
	r := NewResult()
	r.TotalPoints = 10
	r.Matched["A"] = 3
	r.Matched["B"] = 4

	assert.Equal(t, 7, r.MatchedTotal())
	assert.InDelta(t, 70.0, r.OverallPassRate(), 1e-9)
}

func TestResult_EmptyRun(t *testing.T) {
	r := NewResult()
	assert.Zero(t, r.OverallPassRate())
}
