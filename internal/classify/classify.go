// Package classify assigns locate points to distance bands and evaluates
// the per-band quality gates. It consumes precomputed nearest-line
// distances; it performs no geometry of its own.
package classify

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/category"
	"github.com/sells-group/locate-qa/internal/model"
)

// MetersToFeet converts the provider's raw meters to feet.
const MetersToFeet = 3.28084

// UnclassifiedRank marks a point whose proximity falls outside every band.
const UnclassifiedRank = "X"

// Authenticated field values written back to the point source.
const (
	AuthYes = "Yes"
	AuthNo  = "No"
)

// LookupFunc resolves the pass-field attribute on a facility line.
// The second return is false when the line has no row or no value.
type LookupFunc func(lineID int64) (string, bool, error)

// Rules is the per-run validation context: immutable once the run starts.
type Rules struct {
	MinLocateScore float64
	ValidGPSCodes  map[string]struct{}
	PassLookup     LookupFunc // nil when no pass field is configured
}

// GPSCodeSet builds the valid-code set from a list of fix-type codes.
func GPSCodeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Result accumulates per-band tallies across one run. Matched counts
// every point assigned to a band, regardless of validation outcome.
type Result struct {
	Matched         map[string]int
	TotalPoints     int
	ProcessedPoints int
}

// NewResult returns an empty accumulator.
func NewResult() *Result {
	return &Result{Matched: make(map[string]int)}
}

// MatchedTotal returns the number of points assigned to any band.
func (r *Result) MatchedTotal() int {
	sum := 0
	for _, n := range r.Matched {
		sum += n
	}
	return sum
}

// OverallPassRate returns matched points as a percentage of all points,
// including points that were skipped for a missing distance.
func (r *Result) OverallPassRate() float64 {
	if r.TotalPoints == 0 {
		return 0
	}
	return float64(r.MatchedTotal()) / float64(r.TotalPoints) * 100
}

// Classifier runs the single-pass band assignment and gate evaluation.
type Classifier struct {
	table  *category.Table
	rules  Rules
	result *Result
	memo   map[int64]lookupEntry
}

type lookupEntry struct {
	value string
	found bool
}

// New builds a classifier over the given band table and validation rules.
func New(table *category.Table, rules Rules) *Classifier {
	return &Classifier{
		table:  table,
		rules:  rules,
		result: NewResult(),
		memo:   make(map[int64]lookupEntry),
	}
}

// Result returns the run accumulator.
func (c *Classifier) Result() *Result {
	return c.result
}

// Classify processes one point: converts its nearest distance to feet,
// assigns it to the first matching band in declaration order, evaluates
// the locate/GPS/pass-field gates, and writes the derived fields back
// onto the record. A point with no computed distance is skipped: it
// counts toward the total but is left untouched.
//
// The band walk keeps a running lower bound that advances to each
// visited band's max distance whether or not that band matched. This
// mirrors the historical matching behavior, including its gaps when
// bands are declared out of ascending order.
func (c *Classifier) Classify(p *model.PointRecord) error {
	c.result.TotalPoints++

	if p.NearDistanceM == nil {
		return nil
	}
	c.result.ProcessedPoints++

	feet := round2(*p.NearDistanceM * MetersToFeet)
	p.ProximityFeet = &feet

	locatePass := p.OverallScore != nil && *p.OverallScore >= c.rules.MinLocateScore
	gpsPass := false
	if p.PositionValue != nil {
		_, gpsPass = c.rules.ValidGPSCodes[*p.PositionValue]
	}

	band, matched := c.match(feet)
	if !matched {
		rank := UnclassifiedRank
		auth := AuthNo
		p.ProximityRank = &rank
		p.Authenticated = &auth
		zap.L().Debug("classify: point outside all bands",
			zap.String("point", p.ExternalID),
			zap.Float64("proximity_ft", feet),
		)
		return nil
	}

	// The tally increments for every matched point; validation only
	// gates the authenticated flag.
	c.result.Matched[band.Name]++

	authenticated := false
	if locatePass && gpsPass {
		passes := true
		if band.HasPassValues() && c.rules.PassLookup != nil && p.HasNearLine() {
			value, found, err := c.lookup(p.NearLineID)
			if err != nil {
				return eris.Wrapf(err, "classify: pass-field lookup for line %d", p.NearLineID)
			}
			// A missing attribute leaves the gate unapplied.
			if found && !band.Accepts(value) {
				passes = false
			}
		}
		if passes && band.RequiresAuthentication {
			authenticated = true
		}
	}

	rank := band.Name
	auth := AuthNo
	if authenticated {
		auth = AuthYes
	}
	p.ProximityRank = &rank
	p.Authenticated = &auth

	return nil
}

// match walks the bands in declaration order with an unconditionally
// advancing lower bound and returns the first band containing feet.
func (c *Classifier) match(feet float64) (category.Category, bool) {
	lower := 0.0
	for _, band := range c.table.Bands() {
		if lower < feet && feet <= band.MaxDistance {
			return band, true
		}
		lower = band.MaxDistance
	}
	return category.Category{}, false
}

// lookup memoizes pass-field resolution per line id within the run.
// Lookups are idempotent, so this is purely a round-trip saver.
func (c *Classifier) lookup(lineID int64) (string, bool, error) {
	if e, ok := c.memo[lineID]; ok {
		return e.value, e.found, nil
	}
	value, found, err := c.rules.PassLookup(lineID)
	if err != nil {
		return "", false, err
	}
	c.memo[lineID] = lookupEntry{value: value, found: found}
	return value, found, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
