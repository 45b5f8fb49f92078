package server

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/page"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/viewsync"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Store     *feed.Store
	Metrics   *observability.Metrics
	IndexHTML []byte
	IndexETag string
	Legend    []byte
	Home      viewsync.View
	WebSocket WebSocketConfig
}

// NewServerContext renders the page and the legend image once and binds
// the handlers to the feed store.
func NewServerContext(cfg *config.Config, store *feed.Store, metrics *observability.Metrics) (*ServerContext, error) {
	log.Info().
		Str("style", cfg.Map.Style).
		Float64("zoom", cfg.Map.Zoom).
		Msg("Initializing server context")

	index, err := page.Build(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("build index page: %w", err)
	}

	var legend bytes.Buffer
	if err := render.LegendImage(&legend); err != nil {
		return nil, fmt.Errorf("render legend: %w", err)
	}

	log.Debug().
		Int("index_bytes", len(index)).
		Int("legend_bytes", legend.Len()).
		Msg("Static content rendered")

	return &ServerContext{
		Config:    cfg,
		Store:     store,
		Metrics:   metrics,
		IndexHTML: index,
		IndexETag: contentETag(index),
		Legend:    legend.Bytes(),
		Home: viewsync.View{
			Center: geo.Point{cfg.Map.Center[0], cfg.Map.Center[1]},
			Zoom:   cfg.Map.Zoom,
		},
		WebSocket: DefaultWebSocketConfig(),
	}, nil
}

// contentETag derives a strong ETag from the body bytes.
func contentETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}
