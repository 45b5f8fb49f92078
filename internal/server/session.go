package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/quake"
	"github.com/woozymasta/quakemap/internal/viewsync"
)

// Client event types.
const (
	EventReady    = "ready"
	EventSettle   = "settle"
	EventBarClick = "bar_click"
	EventReset    = "reset"
)

// WebSocketConfig contains configuration for sync connections.
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Commands buffered per session before the writer falls behind
	SendBuffer int
}

// DefaultWebSocketConfig returns the default sync connection settings.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

type clientEvent struct {
	Type   string      `json:"type"`
	Bounds *geo.Bounds `json:"bounds,omitempty"`
	Index  *int        `json:"index,omitempty"`
}

type columnsCommand struct {
	Type    string  `json:"type"`
	Columns [][]any `json:"columns"`
}

type countCommand struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type filterCommand struct {
	Type   string           `json:"type"`
	Layer  string           `json:"layer"`
	Filter quake.Expression `json:"filter"`
}

type flyCommand struct {
	Type   string     `json:"type"`
	Center [2]float64 `json:"center"` // [Lon, Lat]
	Zoom   float64    `json:"zoom"`
}

type errorCommand struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// remote plays the map, the chart and the sidebar of the connected page.
// Bounds are the last ones the page reported; every other call becomes
// a command on the session's send queue.
type remote struct {
	bounds geo.Bounds
	send   func(v any)
}

func (r *remote) Bounds() geo.Bounds { return r.bounds }

func (r *remote) SetFilter(layerID string, filter quake.Expression) {
	r.send(filterCommand{Type: "set_filter", Layer: layerID, Filter: filter})
}

func (r *remote) FlyTo(center geo.Point, zoom float64) {
	r.send(flyCommand{Type: "fly_to", Center: [2]float64(center), Zoom: zoom})
}

func (r *remote) Generate(columns [][]any) {
	r.send(columnsCommand{Type: "chart_generate", Columns: columns})
}

func (r *remote) Load(columns [][]any) {
	r.send(columnsCommand{Type: "chart_load", Columns: columns})
}

func (r *remote) SetCount(n int) {
	r.send(countCommand{Type: "count", Count: n})
}

type session struct {
	srv    *ServerContext
	conn   *websocket.Conn
	cfg    WebSocketConfig
	logger zerolog.Logger

	out    chan []byte
	closed chan struct{}
	gone   chan struct{}

	remote    *remote
	ctrl      *viewsync.Controller
	mapLoaded bool
}

// HandleSync upgrades the request and runs one sync session until the
// page goes away.
func (s *ServerContext) HandleSync(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("Failed to upgrade sync connection")
		return
	}

	sess := s.newSession(conn)
	sess.logger.Info().Str("ip", r.RemoteAddr).Msg("Sync session opened")

	s.Metrics.SessionsActive.Inc()
	defer s.Metrics.SessionsActive.Dec()

	sess.run()
	sess.logger.Info().Msg("Sync session closed")
}

func (s *ServerContext) newSession(conn *websocket.Conn) *session {
	sess := &session{
		srv:    s,
		conn:   conn,
		cfg:    s.WebSocket,
		logger: log.With().Str("session", uuid.NewString()).Logger(),
		out:    make(chan []byte, s.WebSocket.SendBuffer),
		closed: make(chan struct{}),
		gone:   make(chan struct{}),
	}

	sess.remote = &remote{bounds: geo.World, send: sess.send}
	sess.ctrl = viewsync.New(sess.remote, sess.remote, sess.remote, s.Home)
	sess.ctrl.OnAggregate = func(quake.Counts) { s.Metrics.Aggregations.Inc() }

	return sess
}

// run is the session event loop. Events and the feed completion are
// handled one at a time, each to completion.
func (s *session) run() {
	events := make(chan clientEvent)
	go s.writePump()
	go s.readPump(events)
	defer close(s.closed)

	storeDone := s.srv.Store.Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ev)

		case <-storeDone:
			storeDone = nil
			s.dataReady()
		}
	}
}

func (s *session) handle(ev clientEvent) {
	eventType := ev.Type
	switch ev.Type {
	case EventReady:
		s.setBounds(ev.Bounds)
		s.mapLoaded = true
		s.dataReady()

	case EventSettle:
		s.setBounds(ev.Bounds)
		s.ctrl.Settle()

	case EventBarClick:
		if ev.Index == nil {
			s.sendError("bar_click requires an index")
			break
		}
		f, err := s.ctrl.SelectBar(*ev.Index)
		if err != nil {
			s.sendError(err.Error())
			break
		}
		if f != nil {
			label, _ := quake.LabelAt(*ev.Index)
			s.srv.Metrics.FilterSelections.WithLabelValues(label).Inc()
		}

	case EventReset:
		s.ctrl.Reset()

	default:
		eventType = "unknown"
		s.sendError("unknown event type: " + ev.Type)
	}

	s.srv.Metrics.SessionEvents.WithLabelValues(eventType).Inc()
	s.logger.Trace().Str("event", ev.Type).Msg("Sync event handled")
}

// dataReady hands the feed to the controller once both the page map and
// the dataset are available.
func (s *session) dataReady() {
	if !s.mapLoaded {
		return
	}

	ds, err := s.srv.Store.Dataset()
	if err != nil {
		return
	}
	s.ctrl.DataReady(ds.Collection)
}

func (s *session) setBounds(b *geo.Bounds) {
	if b != nil {
		s.remote.bounds = *b
	}
}

func (s *session) send(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode sync command")
		return
	}

	select {
	case s.out <- msg:
	case <-s.closed:
	case <-s.gone:
	}
}

func (s *session) sendError(message string) {
	s.send(errorCommand{Type: "error", Message: message})
}

// readPump decodes page events until the connection fails.
func (s *session) readPump(events chan<- clientEvent) {
	defer close(events)

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Sync connection error")
			}
			return
		}

		var ev clientEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			s.sendError("malformed event: " + err.Error())
			continue
		}

		select {
		case events <- ev:
		case <-s.closed:
			return
		}
	}
}

// writePump sends queued commands one per frame and keeps the peer alive.
func (s *session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.gone)
	}()

	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug().Err(err).Msg("Sync write failed")
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closed:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// checkOrigin accepts same-origin pages and the configured CORS origins.
func (s *ServerContext) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	for _, allowed := range s.Config.CorsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
