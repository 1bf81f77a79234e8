// Package near computes each locate point's nearest underground
// facility line. The audit core consumes its output as precomputed
// (distance, line id) pairs.
package near

import "context"

// Provider finds the closest facility line to a point.
type Provider interface {
	// Nearest returns the distance in meters to the closest line and
	// that line's id. ok is false when no facility line exists.
	Nearest(ctx context.Context, lat, lon float64) (distanceM float64, lineID int64, ok bool, err error)
}
