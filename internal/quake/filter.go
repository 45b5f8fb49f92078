package quake

import (
	"fmt"
	"strconv"

	"github.com/woozymasta/quakemap/internal/geo"
)

// Expression is a declarative map style expression, encoded as JSON arrays.
type Expression []any

// Filter limits the point layer to magnitudes in [Floor, Ceiling).
type Filter struct {
	Floor   float64 `json:"floor"`
	Ceiling float64 `json:"ceiling"`
}

// FilterForLabel derives the filter for a clicked chart bar.
//
// The window is one magnitude wide for every label, so selecting "6" shows
// [6, 7) even though that bucket also counts stronger events.
func FilterForLabel(label string) (*Filter, error) {
	if _, err := labelIndex(label); err != nil {
		return nil, fmt.Errorf("%w: %q", err, label)
	}

	floor, err := strconv.Atoi(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, label)
	}

	return &Filter{Floor: float64(floor), Ceiling: float64(floor + 1)}, nil
}

// Expression returns the layer filter for f. A nil filter yields a nil
// expression, which clears the layer filter.
func (f *Filter) Expression() Expression {
	if f == nil {
		return nil
	}

	mag := Expression{"get", "mag"}
	return Expression{
		"all",
		Expression{">=", mag, f.Floor},
		Expression{"<", mag, f.Ceiling},
	}
}

// Match reports whether a magnitude passes the filter.
func (f *Filter) Match(mag float64) bool {
	if f == nil {
		return true
	}
	return mag >= f.Floor && mag < f.Ceiling
}

// CountVisible counts the points the map draws inside bounds under f.
// Unlike Aggregate it follows the renderer, which reads a missing
// magnitude as 0.
func CountVisible(fc *geo.FeatureCollection, bounds geo.Bounds, f *Filter) int {
	if fc == nil {
		return 0
	}

	n := 0
	for _, feat := range fc.Features {
		pos, ok := feat.Position()
		if !ok || !bounds.Contains(pos) {
			continue
		}
		mag, _ := feat.Magnitude()
		if f.Match(mag) {
			n++
		}
	}
	return n
}
