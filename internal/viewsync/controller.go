// Package viewsync keeps the sidebar count, the magnitude chart and the map
// filter of one page session consistent with user interaction.
//
// A Controller is driven by a single event loop: its methods are not safe
// for concurrent use and are expected to run one at a time, to completion.
package viewsync

import (
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/quake"
)

// MapView is the map renderer as seen by the controller.
type MapView interface {
	// Bounds returns the current visible extent.
	Bounds() geo.Bounds
	// SetFilter replaces the layer filter; a nil expression shows every point.
	SetFilter(layerID string, filter quake.Expression)
	// FlyTo animates the view to center and zoom.
	FlyTo(center geo.Point, zoom float64)
}

// Chart is the magnitude bar chart.
type Chart interface {
	// Generate creates the chart with its first columns.
	Generate(columns [][]any)
	// Load replaces the data of the existing chart.
	Load(columns [][]any)
}

// Sidebar shows the number of events in view.
type Sidebar interface {
	SetCount(n int)
}

// View is the default viewport the reset action returns to.
type View struct {
	Center geo.Point
	Zoom   float64
}

// State is a snapshot of what the controller last pushed.
type State struct {
	Filter *quake.Filter `json:"filter"`
	Counts quake.Counts  `json:"counts"`
	Total  int           `json:"total"`
	Ready  bool          `json:"ready"`
}

// Controller is the per-session synchronization state.
type Controller struct {
	mapView MapView
	chart   Chart
	sidebar Sidebar

	features *geo.FeatureCollection
	filter   *quake.Filter
	home     View
	counts   quake.Counts

	chartReady bool

	// OnAggregate, when set, is called after every aggregation.
	OnAggregate func(quake.Counts)
}

// New creates a controller bound to its collaborators.
func New(m MapView, c Chart, s Sidebar, home View) *Controller {
	return &Controller{
		mapView: m,
		chart:   c,
		sidebar: s,
		home:    home,
	}
}

// DataReady hands the loaded collection to the controller, builds the chart
// from the current viewport and sets the sidebar count. Only the first call
// with a non-nil collection has any effect.
func (c *Controller) DataReady(fc *geo.FeatureCollection) {
	if fc == nil || c.features != nil {
		return
	}
	c.features = fc

	counts := c.aggregate()
	c.chart.Generate(counts.Columns())
	c.chartReady = true
	c.sidebar.SetCount(counts.Total())

	log.Debug().
		Int("features", len(fc.Features)).
		Int("in_view", counts.Total()).
		Msg("Session data ready")
}

// Settle re-aggregates for the current viewport once the map has stopped
// changing, and pushes the result into the sidebar and the chart.
func (c *Controller) Settle() {
	if !c.ready() {
		return
	}

	counts := c.aggregate()
	c.sidebar.SetCount(counts.Total())
	c.chart.Load(counts.Columns())
}

// SelectBar applies the magnitude window of the clicked chart category to
// the point layer. The aggregation bounds are not affected.
func (c *Controller) SelectBar(index int) (*quake.Filter, error) {
	if !c.ready() {
		return nil, nil
	}

	label, err := quake.LabelAt(index)
	if err != nil {
		return nil, err
	}

	f, err := quake.FilterForLabel(label)
	if err != nil {
		return nil, err
	}

	c.filter = f
	c.mapView.SetFilter(quake.PointLayerID, f.Expression())

	log.Debug().
		Str("bucket", label).
		Float64("floor", f.Floor).
		Float64("ceiling", f.Ceiling).
		Msg("Map filter applied")

	return f, nil
}

// Reset flies back to the default view and clears the filter. Counts are
// refreshed by the settle that follows the move.
func (c *Controller) Reset() {
	c.mapView.FlyTo(c.home.Center, c.home.Zoom)
	c.mapView.SetFilter(quake.PointLayerID, nil)
	c.filter = nil
}

// State returns the last pushed counts and the active filter.
func (c *Controller) State() State {
	return State{
		Filter: c.filter,
		Counts: c.counts,
		Total:  c.counts.Total(),
		Ready:  c.ready(),
	}
}

func (c *Controller) ready() bool {
	return c.features != nil && c.chartReady
}

func (c *Controller) aggregate() quake.Counts {
	c.counts = quake.Aggregate(c.features, c.mapView.Bounds())
	if c.OnAggregate != nil {
		c.OnAggregate(c.counts)
	}
	return c.counts
}
