package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/observability"
)

const testFeed = `{
  "type": "FeatureCollection",
  "metadata": {"title": "test feed", "count": 4},
  "features": [
    {"type": "Feature", "id": "a", "properties": {"mag": 4.2, "place": "Honshu"}, "geometry": {"type": "Point", "coordinates": [138, 38, 10]}},
    {"type": "Feature", "id": "b", "properties": {"mag": 5.9, "place": "Kanto"}, "geometry": {"type": "Point", "coordinates": [140, 36, 25]}},
    {"type": "Feature", "id": "c", "properties": {"mag": 6.1, "place": "Chile"}, "geometry": {"type": "Point", "coordinates": [-70, -30, 40]}},
    {"type": "Feature", "id": "d", "properties": {"mag": null}, "geometry": {"type": "Point", "coordinates": [139, 35, 5]}}
  ]
}`

func testDataset(t *testing.T) *feed.Dataset {
	t.Helper()

	fc, err := feed.Parse([]byte(testFeed))
	require.NoError(t, err)

	return &feed.Dataset{
		FetchedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Collection: fc,
		Source:     "test",
		Raw:        []byte(testFeed),
	}
}

func newTestContext(t *testing.T, cfg *config.Config) *ServerContext {
	t.Helper()

	if cfg == nil {
		cfg = config.Default()
	}

	srv, err := NewServerContext(cfg, feed.NewStore(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return srv
}

func loadedContext(t *testing.T) *ServerContext {
	t.Helper()

	srv := newTestContext(t, nil)
	srv.Store.Set(testDataset(t), nil)
	return srv
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	srv := newTestContext(t, nil)
	h := srv.Routes()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "earthquake-chart")

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(t, h, "/", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = get(t, h, "/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndex_ETagFollowsContent(t *testing.T) {
	a := config.Default()
	a.Attribution = "Data: USGS"
	b := config.Default()
	b.Attribution = "Data: USGX"

	first := newTestContext(t, a)
	second := newTestContext(t, b)

	require.Len(t, second.IndexHTML, len(first.IndexHTML))
	assert.NotEqual(t, first.IndexETag, second.IndexETag)

	rec := get(t, second.Routes(), "/", "If-None-Match", first.IndexETag)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.IndexETag, rec.Header().Get("ETag"))
}

func TestHandleConfig(t *testing.T) {
	srv := newTestContext(t, nil)

	rec := get(t, srv.Routes(), "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Map struct {
			Style  string     `json:"style"`
			Center [2]float64 `json:"center"`
			Zoom   float64    `json:"zoom"`
		} `json:"map"`
		SourceID    string            `json:"source_id"`
		LayerID     string            `json:"layer_id"`
		Labels      []string          `json:"labels"`
		ChartColors map[string]string `json:"chart_colors"`
		Paint       map[string]any    `json:"paint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "earthquakes", body.SourceID)
	assert.Equal(t, "earthquakes-point", body.LayerID)
	assert.Equal(t, []string{"4", "5", "6"}, body.Labels)
	assert.Equal(t, "rgb(1,108,89)", body.ChartColors["6"])
	assert.Equal(t, [2]float64{138, 38}, body.Map.Center)
	assert.Equal(t, 5.0, body.Map.Zoom)
	assert.Contains(t, body.Map.Style, "dark-v10")
	assert.Contains(t, body.Paint, "circle-radius")
}

func TestHandleEarthquakes(t *testing.T) {
	srv := loadedContext(t)
	h := srv.Routes()

	rec := get(t, h, "/api/earthquakes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, testFeed, rec.Body.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(t, h, "/api/earthquakes", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestHandleEarthquakes_WaitsForLoad(t *testing.T) {
	srv := newTestContext(t, nil)
	ds := testDataset(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.Store.Set(ds, nil)
	}()

	rec := get(t, srv.Routes(), "/api/earthquakes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testFeed, rec.Body.String())
}

func TestHandleEarthquakes_ClientGone(t *testing.T) {
	srv := newTestContext(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/earthquakes", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
}

func TestHandleSummary_NotLoaded(t *testing.T) {
	srv := newTestContext(t, nil)

	rec := get(t, srv.Routes(), "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not loaded")
}

func TestHandleEarthquakes_LoadFailed(t *testing.T) {
	srv := newTestContext(t, nil)
	srv.Store.Set(nil, errors.New("unexpected status 500"))

	rec := get(t, srv.Routes(), "/api/earthquakes")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "unexpected status 500")
}

func TestHandleSummary(t *testing.T) {
	srv := loadedContext(t)
	h := srv.Routes()

	rec := get(t, h, "/api/summary?bbox=120,20,150,50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"bounds": [120,20,150,50],
		"counts": {"4":1,"5":1,"6":0},
		"total": 2
	}`, rec.Body.String())

	rec = get(t, h, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)

	rec = get(t, h, "/api/summary?label=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"visible":1`)
	assert.Contains(t, rec.Body.String(), `"floor":6`)
}

func TestHandleSummary_BadInput(t *testing.T) {
	srv := loadedContext(t)
	h := srv.Routes()

	tests := []string{
		"/api/summary?bbox=1,2,3",
		"/api/summary?bbox=0,50,10,40",
		"/api/summary?bbox=a,b,c,d",
		"/api/summary?label=3",
	}

	for _, target := range tests {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
}

func TestHandleFilter(t *testing.T) {
	srv := newTestContext(t, nil)
	h := srv.Routes()

	rec := get(t, h, "/api/filter?label=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"label": "5",
		"filter": {"floor": 5, "ceiling": 6},
		"expression": ["all",[">=",["get","mag"],5],["<",["get","mag"],6]],
		"layer": "earthquakes-point"
	}`, rec.Body.String())

	rec = get(t, h, "/api/filter?label=9")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChart(t *testing.T) {
	srv := loadedContext(t)

	rec := get(t, srv.Routes(), "/chart?bbox=120,20,150,50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
	assert.Contains(t, rec.Body.String(), "120,20,150,50")
}

func TestHandleLegend(t *testing.T) {
	srv := newTestContext(t, nil)

	rec := get(t, srv.Routes(), "/legend.webp")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))

	body := rec.Body.Bytes()
	require.Greater(t, len(body), 12)
	assert.Equal(t, "RIFF", string(body[:4]))
	assert.Equal(t, "WEBP", string(body[8:12]))
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestContext(t, nil)
	h := srv.Routes()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.Store.Set(testDataset(t), nil)

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	cfg := config.Default()
	cfg.CorsOrigins = []string{"https://maps.example.com"}
	srv := newTestContext(t, cfg)
	h := srv.Routes()

	rec := get(t, h, "/api/config", "Origin", "https://maps.example.com")
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/api/config", "Origin", "https://other.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.CorsOrigins = []string{"https://maps.example.com"}
	srv := newTestContext(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "http://quakes.local/ws", nil)
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "http://quakes.local")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://maps.example.com")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, srv.checkOrigin(req))
}

func dialSync(t *testing.T, srv *ServerContext) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(event)))
}

func expectCommand(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, want, string(msg))
}

func TestSync_RoundTrip(t *testing.T) {
	srv := loadedContext(t)
	conn := dialSync(t, srv)

	sendEvent(t, conn, `{"type":"ready","bounds":[120,20,150,50]}`)
	expectCommand(t, conn, `{"type":"chart_generate","columns":[["mag","4","5","6"],["#",1,1,0]]}`)
	expectCommand(t, conn, `{"type":"count","count":2}`)

	sendEvent(t, conn, `{"type":"bar_click","index":1}`)
	expectCommand(t, conn, `{"type":"set_filter","layer":"earthquakes-point","filter":["all",[">=",["get","mag"],5],["<",["get","mag"],6]]}`)

	sendEvent(t, conn, `{"type":"reset"}`)
	expectCommand(t, conn, `{"type":"fly_to","center":[138,38],"zoom":5}`)
	expectCommand(t, conn, `{"type":"set_filter","layer":"earthquakes-point","filter":null}`)

	sendEvent(t, conn, `{"type":"settle","bounds":[[-180,-90],[180,90]]}`)
	expectCommand(t, conn, `{"type":"count","count":3}`)
	expectCommand(t, conn, `{"type":"chart_load","columns":[["mag","4","5","6"],["#",1,1,1]]}`)

	sendEvent(t, conn, `{"type":"bar_click","index":7}`)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"error"`)
}

func TestSync_WaitsForData(t *testing.T) {
	srv := newTestContext(t, nil)
	conn := dialSync(t, srv)

	sendEvent(t, conn, `{"type":"ready","bounds":[120,20,150,50]}`)
	sendEvent(t, conn, `{"type":"bar_click","index":0}`)
	sendEvent(t, conn, `{"type":"settle","bounds":[120,20,150,50]}`)
	sendEvent(t, conn, `{"type":"zoom"}`)

	// Events are handled in order, so the error proves the earlier ones
	// produced nothing.
	expectCommand(t, conn, `{"type":"error","message":"unknown event type: zoom"}`)

	srv.Store.Set(testDataset(t), nil)

	expectCommand(t, conn, `{"type":"chart_generate","columns":[["mag","4","5","6"],["#",1,1,0]]}`)
	expectCommand(t, conn, `{"type":"count","count":2}`)
}
