// Package quake buckets earthquake features by magnitude and derives the
// map filters and legend that go with those buckets.
package quake

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/woozymasta/quakemap/internal/geo"
)

// ErrUnknownBucket is returned for labels or chart indexes outside the bucket set.
var ErrUnknownBucket = errors.New("unknown magnitude bucket")

// Labels are the bucket keys in chart order. "6" collects every magnitude from 6 up.
var Labels = [3]string{"4", "5", "6"}

// Counts holds the number of events per bucket, indexed like Labels.
type Counts [3]int

// Aggregate counts the features inside bounds into magnitude buckets.
//
// Features without a position or a magnitude are skipped, as are magnitudes
// below 4. The function has no side effects.
func Aggregate(fc *geo.FeatureCollection, bounds geo.Bounds) Counts {
	var c Counts
	if fc == nil {
		return c
	}

	for _, f := range fc.Features {
		pos, ok := f.Position()
		if !ok {
			continue
		}
		mag, ok := f.Magnitude()
		if !ok {
			continue
		}
		if !bounds.Contains(pos) {
			continue
		}

		if i, ok := bucketIndex(mag); ok {
			c[i]++
		}
	}

	return c
}

func bucketIndex(mag float64) (int, bool) {
	switch bucket := math.Floor(mag); {
	case bucket >= 6:
		return 2, true
	case bucket == 5:
		return 1, true
	case bucket == 4:
		return 0, true
	default:
		return 0, false
	}
}

// Get returns the count for a bucket label.
func (c Counts) Get(label string) (int, error) {
	i, err := labelIndex(label)
	if err != nil {
		return 0, err
	}
	return c[i], nil
}

// Total is the number of counted events.
func (c Counts) Total() int {
	return c[0] + c[1] + c[2]
}

// Map returns the counts keyed by label.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, len(Labels))
	for i, l := range Labels {
		m[l] = c[i]
	}
	return m
}

// Columns returns the counts in the column layout the bar chart loads:
// an "mag" category column followed by a "#" value column.
func (c Counts) Columns() [][]any {
	x := []any{"mag"}
	y := []any{"#"}
	for i, l := range Labels {
		x = append(x, l)
		y = append(y, c[i])
	}
	return [][]any{x, y}
}

// MarshalJSON encodes the counts as {"4":n,"5":n,"6":n}.
func (c Counts) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON reads the object form written by MarshalJSON.
func (c *Counts) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var out Counts
	for label, n := range m {
		i, err := labelIndex(label)
		if err != nil {
			return err
		}
		out[i] = n
	}
	*c = out
	return nil
}

func labelIndex(label string) (int, error) {
	for i, l := range Labels {
		if l == label {
			return i, nil
		}
	}
	return 0, ErrUnknownBucket
}

// LabelAt maps a chart category index to its bucket label.
func LabelAt(index int) (string, error) {
	if index < 0 || index >= len(Labels) {
		return "", ErrUnknownBucket
	}
	return Labels[index], nil
}
