package quake

import (
	"fmt"
	"image/color"
	"strconv"
)

// Map source and layer identifiers shared by the page and the sync protocol.
const (
	SourceID     = "earthquakes"
	PointLayerID = "earthquakes-point"
)

// Grade is one magnitude class of the legend and the circle layer.
type Grade struct {
	Color  color.RGBA
	Value  int
	Radius float64
}

// Grades drive the legend, the circle layer paint and the chart bar colors.
var Grades = []Grade{
	{Value: 4, Color: color.RGBA{R: 208, G: 209, B: 230, A: 255}, Radius: 5},
	{Value: 5, Color: color.RGBA{R: 103, G: 169, B: 207, A: 255}, Radius: 15},
	{Value: 6, Color: color.RGBA{R: 1, G: 108, B: 89, A: 255}, Radius: 20},
}

// CSS formats the grade color as rgb(r,g,b).
func (g Grade) CSS() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", g.Color.R, g.Color.G, g.Color.B)
}

// LegendEntry is a single legend row.
type LegendEntry struct {
	Label   string  `json:"label"`
	Color   string  `json:"color"`
	DotSize float64 `json:"dot_size"` // px, twice the circle radius
}

// Legend returns one entry per grade.
func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(Grades))
	for _, g := range Grades {
		entries = append(entries, LegendEntry{
			Label:   strconv.Itoa(g.Value) + "+",
			Color:   g.CSS(),
			DotSize: 2 * g.Radius,
		})
	}
	return entries
}

// ChartColors returns the bar color per bucket label.
func ChartColors() map[string]string {
	colors := make(map[string]string, len(Labels))
	for i, l := range Labels {
		colors[l] = Grades[i].CSS()
	}
	return colors
}

// CirclePaint builds the paint properties of the point layer. Radius and
// color are interpolated over the magnitude, with missing values read as 0.
func CirclePaint() map[string]any {
	mag := Expression{"coalesce", Expression{"get", "mag"}, 0}

	radius := Expression{"interpolate", Expression{"linear"}, mag}
	fill := Expression{"interpolate", Expression{"linear"}, mag}
	for _, g := range Grades {
		radius = append(radius, g.Value, g.Radius)
		fill = append(fill, g.Value, g.CSS())
	}

	return map[string]any{
		"circle-radius":       radius,
		"circle-color":        fill,
		"circle-stroke-color": "white",
		"circle-stroke-width": 1,
		"circle-opacity":      0.6,
	}
}
