package server

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes wires every endpoint behind the request logger. CORS is only
// enabled when origins are configured.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/config", s.HandleConfig)
	mux.HandleFunc("GET /api/earthquakes", s.HandleEarthquakes)
	mux.HandleFunc("GET /api/summary", s.HandleSummary)
	mux.HandleFunc("GET /api/filter", s.HandleFilter)
	mux.HandleFunc("GET /chart", s.HandleChart)
	mux.HandleFunc("GET /legend.webp", s.HandleLegend)
	mux.HandleFunc("GET /ws", s.HandleSync)

	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("GET /readyz", handleReady(s.Store))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /", s.HandleIndex)

	var handler http.Handler = mux
	if len(s.Config.CorsOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins: s.Config.CorsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
			ExposedHeaders: []string{"ETag"},
			MaxAge:         300,
		})(handler)
	}

	return RequestLogger(handler)
}
