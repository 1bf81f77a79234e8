// Package model defines the domain records shared across the locate audit pipeline.
package model

// NoNearLine is the sentinel nearest-line id for a point with no facility match.
const NoNearLine int64 = -1

// PointRecord is one locate point read from the feature store.
// Nullable source fields are pointers; nil means the value was never reported.
type PointRecord struct {
	ID            int64    `json:"id"`
	ExternalID    string   `json:"external_id"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	OverallScore  *float64 `json:"overall_score,omitempty"`  // locate accuracy metric
	PositionValue *string  `json:"position_value,omitempty"` // GPS fix-type code
	NearDistanceM *float64 `json:"near_distance_m,omitempty"`
	NearLineID    int64    `json:"near_line_id"`

	// Derived fields, written back by the classifier.
	ProximityFeet *float64 `json:"proximity_feet,omitempty"`
	ProximityRank *string  `json:"proximity_rank,omitempty"`
	Authenticated *string  `json:"authenticated,omitempty"` // "Yes" / "No"
}

// HasNearLine reports whether the nearest-neighbor pass found a facility line.
func (p *PointRecord) HasNearLine() bool {
	return p.NearLineID >= 0 && p.NearLineID != NoNearLine
}

// FacilityLine is one underground facility line feature.
type FacilityLine struct {
	ID         int64   `json:"id"`
	ExternalID string  `json:"external_id"`
	PassValue  *string `json:"pass_value,omitempty"` // optional pass/fail text attribute
	Geom       []byte  `json:"-"`                    // EWKB, SRID 4326
}
