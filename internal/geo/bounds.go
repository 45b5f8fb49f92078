package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrInvalidBounds is returned for malformed viewport rectangles.
var ErrInvalidBounds = errors.New("invalid bounds")

// Bounds is the visible map extent as reported by the renderer.
//
// West may be greater than East when the viewport crosses the antimeridian,
// and either may lie outside [-180, 180] when the map shows world copies.
type Bounds struct {
	West, South, East, North float64
}

// World covers every position.
var World = Bounds{West: -180, South: -90, East: 180, North: 90}

// NewBounds builds a rectangle from west, south, east, north.
func NewBounds(west, south, east, north float64) (Bounds, error) {
	b := Bounds{West: west, South: south, East: east, North: north}
	if err := b.validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// ParseBBox parses "west,south,east,north".
func ParseBBox(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("%w: want 4 comma separated values, got %d", ErrInvalidBounds, len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBounds, p)
		}
		v[i] = f
	}

	return NewBounds(v[0], v[1], v[2], v[3])
}

// Contains reports whether p lies inside the rectangle, edges included.
func (b Bounds) Contains(p Point) bool {
	if p[1] < b.South || p[1] > b.North {
		return false
	}

	if b.East-b.West >= 360 {
		return true
	}

	west, east := NormalizeLon(b.West), NormalizeLon(b.East)
	lon := NormalizeLon(p[0])

	if west <= east {
		return orb.Bound{
			Min: orb.Point{west, b.South},
			Max: orb.Point{east, b.North},
		}.Contains(orb.Point{lon, p[1]})
	}

	// crosses the antimeridian
	return lon >= west || lon <= east
}

// String formats the bounds the way ParseBBox reads them.
func (b Bounds) String() string {
	return strconv.FormatFloat(b.West, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.South, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.East, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.North, 'f', -1, 64)
}

// MarshalJSON encodes the bounds as [west, south, east, north].
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.West, b.South, b.East, b.North})
}

// UnmarshalJSON accepts [west, south, east, north] or [[west, south], [east, north]].
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		if len(flat) != 4 {
			return fmt.Errorf("%w: want 4 values, got %d", ErrInvalidBounds, len(flat))
		}
		nb, err := NewBounds(flat[0], flat[1], flat[2], flat[3])
		if err != nil {
			return err
		}
		*b = nb
		return nil
	}

	var pair [][]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	if len(pair) != 2 || len(pair[0]) != 2 || len(pair[1]) != 2 {
		return fmt.Errorf("%w: want [[w,s],[e,n]]", ErrInvalidBounds)
	}

	nb, err := NewBounds(pair[0][0], pair[0][1], pair[1][0], pair[1][1])
	if err != nil {
		return err
	}
	*b = nb
	return nil
}

func (b Bounds) validate() error {
	for _, v := range []float64{b.West, b.South, b.East, b.North} {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidBounds)
		}
	}
	if b.South > b.North {
		return fmt.Errorf("%w: south %g is above north %g", ErrInvalidBounds, b.South, b.North)
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	}
	return nil
}
