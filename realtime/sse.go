package realtime

import (
	"context"
	"net/http"
	"time"

	"scheduling-server/metrics"
)

var keepaliveFrame = []byte(": keepalive\n\n")

// SSEStream bridges one tenant channel to one text/event-stream response.
type SSEStream struct {
	*stream
}

func NewSSEStream(router Subscriber, firmaID string, opts StreamOptions) *SSEStream {
	return &SSEStream{stream: newStream(router, firmaID, "sse", opts)}
}

// Serve writes the stream until ctx is cancelled or Close is called.
func (s *SSEStream) Serve(ctx context.Context, w http.ResponseWriter) {
	defer s.Close()

	metrics.StreamConnections.WithLabelValues(s.transport).Inc()
	defer metrics.StreamConnections.WithLabelValues(s.transport).Dec()

	rc := http.NewResponseController(w)
	// Streams outlive any server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := s.writeData(w, rc, ConnectedFrame()); err != nil {
		s.log.Debug().Err(err).Msg("Client gone before connected frame")
		return
	}
	s.setState(StateConnected)

	s.subscribe(ctx)

	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()
	keepalive := ticker.C

	s.setState(StateIdle)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case payload := <-s.frames:
			s.setState(StateStreaming)
			if err := s.writeData(w, rc, payload); err != nil {
				// The disconnect signal tears the stream down; one lost frame
				// does not.
				s.log.Debug().Err(err).Msg("Dropping frame for unreachable client")
			}
			s.setState(StateIdle)
		case <-keepalive:
			if err := s.write(w, rc, keepaliveFrame); err != nil {
				s.log.Debug().Err(err).Msg("Keepalive failed, stopping keepalive timer")
				ticker.Stop()
				keepalive = nil
			}
		}
	}
}

func (s *SSEStream) writeData(w http.ResponseWriter, rc *http.ResponseController, payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return s.write(w, rc, frame)
}

func (s *SSEStream) write(w http.ResponseWriter, rc *http.ResponseController, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}
