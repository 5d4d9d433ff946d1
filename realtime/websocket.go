package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"scheduling-server/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

// NewUpgrader builds an upgrader that accepts the configured origins. An empty
// list accepts any origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
}

// WebSocketStream carries the same frames as SSEStream over a WebSocket, with
// ping/pong instead of comment keepalives.
type WebSocketStream struct {
	*stream
	conn *websocket.Conn
}

func NewWebSocketStream(router Subscriber, firmaID string, conn *websocket.Conn, opts StreamOptions) *WebSocketStream {
	return &WebSocketStream{
		stream: newStream(router, firmaID, "websocket", opts),
		conn:   conn,
	}
}

// Serve runs until the peer disconnects, ctx is cancelled or Close is called.
func (s *WebSocketStream) Serve(ctx context.Context) {
	defer s.Close()
	defer s.conn.Close()

	metrics.StreamConnections.WithLabelValues(s.transport).Inc()
	defer metrics.StreamConnections.WithLabelValues(s.transport).Dec()

	if err := s.writeText(ConnectedFrame()); err != nil {
		s.log.Debug().Err(err).Msg("Client gone before connected frame")
		return
	}
	s.setState(StateConnected)

	s.subscribe(ctx)

	go s.readPump()
	s.writePump(ctx)
}

// readPump only watches for the peer going away; inbound messages are ignored.
func (s *WebSocketStream) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (s *WebSocketStream) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	s.setState(StateIdle)
	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-s.closed:
			return
		case payload := <-s.frames:
			s.setState(StateStreaming)
			if err := s.writeText(payload); err != nil {
				s.log.Debug().Err(err).Msg("Dropping frame for unreachable client")
			}
			s.setState(StateIdle)
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketStream) writeText(payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
