// Package geo handles geographic data structures and viewport geometry.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Point is a [Lon, Lat] position.
type Point = orb.Point

// FeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure plus the USGS metadata block.
type FeatureCollection struct {
	Metadata *Metadata `json:"metadata,omitempty"`
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Metadata is the summary block USGS attaches to its feeds.
type Metadata struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	API       string `json:"api,omitempty"`
	Generated int64  `json:"generated,omitempty"` // Unix millis
	Status    int    `json:"status,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// Feature represents a single geographic feature with geometry and properties.
type Feature struct {
	Properties map[string]interface{} `json:"properties"`
	Geometry   *Geometry              `json:"geometry"`
	Type       string                 `json:"type"`
	ID         any                    `json:"id,omitempty"` // string or number
}

// Geometry represents the geometry of a feature. Only points are located.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [Lon, Lat, Depth]
}

// Position returns the feature location and whether it has a usable one.
func (f Feature) Position() (Point, bool) {
	g := f.Geometry
	if g == nil || (g.Type != "" && g.Type != "Point") || len(g.Coordinates) < 2 {
		return Point{}, false
	}

	lon, lat := g.Coordinates[0], g.Coordinates[1]
	if !finite(lon) || !finite(lat) {
		return Point{}, false
	}

	return Point{lon, lat}, true
}

// Magnitude returns properties.mag and false when it is absent or null.
func (f Feature) Magnitude() (float64, bool) {
	v, ok := f.Properties["mag"]
	if !ok || v == nil {
		return 0, false
	}

	var mag float64
	switch n := v.(type) {
	case float64:
		mag = n
	case float32:
		mag = float64(n)
	case int:
		mag = float64(n)
	case int64:
		mag = float64(n)
	default:
		return 0, false
	}

	if !finite(mag) {
		return 0, false
	}
	return mag, true
}

// Place returns the descriptive label of the event, if any.
func (f Feature) Place() string {
	s, _ := f.Properties["place"].(string)
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
