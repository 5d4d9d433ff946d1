package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
)

// StreamState tracks one stream connection:
// CONNECTING -> CONNECTED -> (STREAMING | IDLE)* -> CLOSED.
type StreamState int32

const (
	StateConnecting StreamState = iota
	StateConnected
	StateStreaming
	StateIdle
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscriber is the router surface a stream needs. Done is closed when the
// router shuts down.
type Subscriber interface {
	Subscribe(ctx context.Context, firmaID string, handler Handler) (func(), error)
	Done() <-chan struct{}
}

// StreamOptions configures keepalive and buffering for a stream.
type StreamOptions struct {
	KeepaliveInterval time.Duration
	Buffer            int
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = 30 * time.Second
	}
	if o.Buffer <= 0 {
		o.Buffer = 64
	}
	return o
}

// stream holds what SSE and WebSocket connections share: the tenant
// subscription, the outbound frame buffer and the idempotent close.
type stream struct {
	router    Subscriber
	firmaID   string
	transport string
	opts      StreamOptions
	log       zerolog.Logger

	state       atomic.Int32
	frames      chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
	unsubMu     sync.Mutex
	unsubscribe func()
}

func newStream(router Subscriber, firmaID, transport string, opts StreamOptions) *stream {
	opts = opts.withDefaults()
	s := &stream{
		router:    router,
		firmaID:   firmaID,
		transport: transport,
		opts:      opts,
		log:       logger.WithTenant("stream", firmaID).With().Str("transport", transport).Logger(),
		frames:    make(chan []byte, opts.Buffer),
		closed:    make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// subscribe attaches the stream to its tenant channel. A failed subscribe is
// logged and leaves the stream open without events.
func (s *stream) subscribe(ctx context.Context) {
	go s.closeWithRouter()

	unsubscribe, err := s.router.Subscribe(ctx, s.firmaID, s.enqueue)
	if err != nil {
		s.log.Error().Err(err).Msg("Subscribe failed, stream will only carry keepalives")
		return
	}

	s.unsubMu.Lock()
	defer s.unsubMu.Unlock()
	select {
	case <-s.closed:
		unsubscribe()
	default:
		s.unsubscribe = unsubscribe
	}
}

func (s *stream) closeWithRouter() {
	select {
	case <-s.router.Done():
		s.log.Debug().Msg("Router closed, ending stream")
		s.Close()
	case <-s.closed:
	}
}

func (s *stream) enqueue(payload []byte) {
	select {
	case s.frames <- payload:
	default:
		metrics.EventsDropped.WithLabelValues("buffer_full").Inc()
		s.log.Warn().Msg("Stream buffer full, dropping event")
	}
}

func (s *stream) setState(state StreamState) {
	if StreamState(s.state.Load()) == StateClosed {
		return
	}
	s.state.Store(int32(state))
}

func (s *stream) State() StreamState {
	return StreamState(s.state.Load())
}

// Close releases the tenant subscription. It is safe to call repeatedly and
// from any goroutine.
func (s *stream) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))

		s.unsubMu.Lock()
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		close(s.closed)
		s.unsubMu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		s.log.Debug().Msg("Stream closed")
	})
}
