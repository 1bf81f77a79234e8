// Package category builds the ordered distance-band table that drives
// proximity classification. Bands are matched in declaration order, so
// the table preserves the order its specs were supplied in.
package category

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxBands caps how many distance bands a run may configure.
const MaxBands = 5

// ErrConfiguration marks an invalid category specification. It fails the
// run before any point is touched.
var ErrConfiguration = eris.New("category: invalid configuration")

// Spec is the raw, configuration-time input for one distance band.
type Spec struct {
	Name                   string   `yaml:"name" mapstructure:"name"`
	MaxDistance            float64  `yaml:"max_distance" mapstructure:"max_distance"` // feet
	PassValues             []string `yaml:"pass_values" mapstructure:"pass_values"`
	RequiresAuthentication bool     `yaml:"requires_authentication" mapstructure:"requires_authentication"`
}

// Category is one immutable distance band with its acceptance rule.
type Category struct {
	Name                   string
	MaxDistance            float64
	passValues             map[string]struct{}
	RequiresAuthentication bool
}

// HasPassValues reports whether the band gates on the nearest line's
// pass-field attribute. An empty set means distance-only.
func (c Category) HasPassValues() bool {
	return len(c.passValues) > 0
}

// Accepts reports whether the resolved attribute value satisfies the
// band's pass set. Membership is literal: case-sensitive, untrimmed.
func (c Category) Accepts(value string) bool {
	_, ok := c.passValues[value]
	return ok
}

// Table is the ordered list of distance bands for one run.
type Table struct {
	bands []Category
}

// Build validates the raw specs and constructs the band table.
// It rejects an empty list, more than MaxBands entries, empty or
// duplicate names, and non-positive distances. Ordering of
// max_distance across the list is NOT enforced: matching follows
// declaration order, so a non-monotonic list only draws a warning.
func Build(specs []Spec) (*Table, error) {
	if len(specs) == 0 {
		return nil, eris.Wrap(ErrConfiguration, "at least one category is required")
	}
	if len(specs) > MaxBands {
		return nil, eris.Wrapf(ErrConfiguration, "at most %d categories are supported, got %d", MaxBands, len(specs))
	}

	seen := make(map[string]struct{}, len(specs))
	bands := make([]Category, 0, len(specs))
	prev := 0.0
	monotonic := true

	for i, s := range specs {
		if s.Name == "" {
			return nil, eris.Wrapf(ErrConfiguration, "category %d has an empty name", i+1)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, eris.Wrapf(ErrConfiguration, "duplicate category name %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.MaxDistance <= 0 {
			return nil, eris.Wrapf(ErrConfiguration, "category %q max_distance must be positive, got %v", s.Name, s.MaxDistance)
		}
		if s.MaxDistance <= prev {
			monotonic = false
		}
		prev = s.MaxDistance

		pv := make(map[string]struct{}, len(s.PassValues))
		for _, v := range s.PassValues {
			pv[v] = struct{}{}
		}
		bands = append(bands, Category{
			Name:                   s.Name,
			MaxDistance:            s.MaxDistance,
			passValues:             pv,
			RequiresAuthentication: s.RequiresAuthentication,
		})
	}

	if !monotonic {
		zap.L().Warn("category: max_distance values are not strictly ascending; matching follows declaration order and may leave gaps")
	}

	return &Table{bands: bands}, nil
}

// Bands returns the categories in declaration order.
func (t *Table) Bands() []Category {
	return t.bands
}

// Count returns the number of configured bands.
func (t *Table) Count() int {
	return len(t.bands)
}
