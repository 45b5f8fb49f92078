// Package server handles HTTP requests, the sync sessions and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/page"
	"github.com/woozymasta/quakemap/internal/quake"
	"github.com/woozymasta/quakemap/internal/render"
)

type configResponse struct {
	Map         config.Map          `json:"map"`
	SourceID    string              `json:"source_id"`
	LayerID     string              `json:"layer_id"`
	Paint       map[string]any      `json:"paint"`
	Labels      [3]string           `json:"labels"`
	ChartColors map[string]string   `json:"chart_colors"`
	Legend      []quake.LegendEntry `json:"legend"`
	Attribution string              `json:"attribution"`
}

type summaryResponse struct {
	Bounds  geo.Bounds    `json:"bounds"`
	Counts  quake.Counts  `json:"counts"`
	Total   int           `json:"total"`
	Filter  *quake.Filter `json:"filter,omitempty"`
	Visible *int          `json:"visible,omitempty"`
}

type filterResponse struct {
	Label      string           `json:"label"`
	Filter     *quake.Filter    `json:"filter"`
	Expression quake.Expression `json:"expression"`
	Layer      string           `json:"layer"`
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := s.IndexETag
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleConfig serves the map settings and the layer styling the page
// needs before it can draw anything.
func (s *ServerContext) HandleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Map:         s.Config.Map,
		SourceID:    quake.SourceID,
		LayerID:     quake.PointLayerID,
		Paint:       quake.CirclePaint(),
		Labels:      quake.Labels,
		ChartColors: quake.ChartColors(),
		Legend:      quake.Legend(),
		Attribution: s.Config.Attribution,
	})
}

// HandleEarthquakes serves the feed exactly as it was received. While the
// feed is loading the request waits for the outcome.
func (s *ServerContext) HandleEarthquakes(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.Store.Done():
	case <-r.Context().Done():
		return
	}

	ds, ok := s.dataset(w)
	if !ok {
		return
	}

	etag := ds.ETag()
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(ds.Raw)
}

// HandleSummary aggregates the feed over the bbox query parameter, or the
// whole world without one. An optional label adds the number of points the
// map shows under that bar's filter.
func (s *ServerContext) HandleSummary(w http.ResponseWriter, r *http.Request) {
	bounds, ok := bboxParam(w, r)
	if !ok {
		return
	}

	ds, ok := s.dataset(w)
	if !ok {
		return
	}

	counts := quake.Aggregate(ds.Collection, bounds)
	s.Metrics.Aggregations.Inc()

	resp := summaryResponse{
		Bounds: bounds,
		Counts: counts,
		Total:  counts.Total(),
	}

	if label := r.URL.Query().Get("label"); label != "" {
		f, err := quake.FilterForLabel(label)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		visible := quake.CountVisible(ds.Collection, bounds, f)
		resp.Filter = f
		resp.Visible = &visible
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleFilter describes the layer filter of one chart bar.
func (s *ServerContext) HandleFilter(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	f, err := quake.FilterForLabel(label)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, filterResponse{
		Label:      label,
		Filter:     f,
		Expression: f.Expression(),
		Layer:      quake.PointLayerID,
	})
}

// HandleChart renders the magnitude histogram for a bbox as an HTML page.
func (s *ServerContext) HandleChart(w http.ResponseWriter, r *http.Request) {
	bounds, ok := bboxParam(w, r)
	if !ok {
		return
	}

	ds, ok := s.dataset(w)
	if !ok {
		return
	}

	counts := quake.Aggregate(ds.Collection, bounds)
	s.Metrics.Aggregations.Inc()

	var buf bytes.Buffer
	if err := render.Chart(&buf, counts, page.Title+" "+bounds.String()); err != nil {
		log.Error().Err(err).Msg("Failed to render chart")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

// HandleLegend serves the pre-rendered legend swatches.
func (s *ServerContext) HandleLegend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Legend)
}

// dataset writes 503 while the feed is loading and 502 after a failed load.
func (s *ServerContext) dataset(w http.ResponseWriter) (*feed.Dataset, bool) {
	ds, err := s.Store.Dataset()
	switch {
	case err == nil:
		return ds, true
	case errors.Is(err, feed.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
	return nil, false
}

func bboxParam(w http.ResponseWriter, r *http.Request) (geo.Bounds, bool) {
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		return geo.World, true
	}

	b, err := geo.ParseBBox(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return geo.Bounds{}, false
	}
	return b, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
