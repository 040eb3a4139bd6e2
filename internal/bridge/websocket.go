package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxMessageSize = 64 * 1024
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
)

// OriginChecker decides whether a WebSocket upgrade from origin is allowed.
type OriginChecker func(origin string) bool

// WebSocketHandler accepts extension connections and feeds every received
// message to the Dispatcher. Closing a connection counts as a page unload.
type WebSocketHandler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     zerolog.Logger

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebSocketHandler creates a handler. A nil allowOrigin accepts every
// origin.
func NewWebSocketHandler(dispatcher *Dispatcher, allowOrigin OriginChecker, logger zerolog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "bridge-ws").Logger(),
		conns:      make(map[string]*websocket.Conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowOrigin == nil {
				return true
			}
			return allowOrigin(origin)
		},
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	logger := h.logger.With().Str("conn_id", connID).Logger()

	h.track(connID, conn)
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Extension connected")

	done := make(chan struct{})
	go h.pingLoop(conn, done)

	h.readLoop(conn, logger)
	close(done)
	_ = conn.Close()
	h.untrack(connID)

	h.dispatcher.Disconnect(context.Background())
	logger.Info().Msg("Extension disconnected")
}

// Connections returns the number of open connections.
func (h *WebSocketHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close closes every open connection.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
	}
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn, logger zerolog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}

		msgs, err := Decode(data)
		if err != nil {
			logger.Debug().Err(err).Msg("Ignoring malformed message")
			metrics.EventsTotal.WithLabelValues("malformed").Inc()
			continue
		}
		h.dispatcher.Dispatch(context.Background(), msgs)
	}
}

func (h *WebSocketHandler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) track(id string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	metrics.BridgeConnections.Inc()
}

func (h *WebSocketHandler) untrack(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	metrics.BridgeConnections.Dec()
}
