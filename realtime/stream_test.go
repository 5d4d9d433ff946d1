package realtime

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncRecorder is an http.ResponseWriter safe to read while a stream writes.
type syncRecorder struct {
	mu      sync.Mutex
	header  http.Header
	code    int
	body    bytes.Buffer
	flushes int
	failing bool
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: make(http.Header)}
}

func (r *syncRecorder) Header() http.Header { return r.header }

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return 0, errors.New("broken pipe")
	}
	return r.body.Write(p)
}

func (r *syncRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func (r *syncRecorder) setFailing(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = v
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string, Handler) (func(), error) {
	return nil, errors.New("listener down")
}

func (failingSubscriber) Done() <-chan struct{} { return nil }

func serveSSE(t *testing.T, router Subscriber, firmaID string, opts StreamOptions) (*SSEStream, *syncRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	stream := NewSSEStream(router, firmaID, opts)
	rec := newSyncRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Serve(ctx, rec)
	}()
	return stream, rec, cancel, done
}

func TestSSEStreamFrames(t *testing.T) {
	router, _ := newTestRouter(t)

	stream, rec, cancel, done := serveSSE(t, router, "firma1", StreamOptions{KeepaliveInterval: time.Hour})
	defer cancel()

	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(rec.String(), "data: {\"type\":\"connected\"}\n\n"))

	require.NoError(t, router.Publish(context.Background(), ChangeEvent{
		Type:          AppointmentCreated,
		AppointmentID: "apt1",
		WorkerIDs:     []string{"w1", "w2"},
		FirmaID:       "firma1",
	}))
	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), `data: {"type":"appointment_created","appointmentID":"apt1","workerIds":["w1","w2"],"firmaID":"firma1"}`+"\n\n")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))

	cancel()
	<-done
	assert.Equal(t, StateClosed, stream.State())
	assert.Zero(t, router.SubscriberCount("firma1"))

	// A duplicate disconnect signal is harmless.
	stream.Close()
	stream.Close()
	assert.Zero(t, router.Stats().TotalSubscribers)
}

func TestSSEStreamKeepalive(t *testing.T) {
	router, _ := newTestRouter(t)

	_, rec, cancel, done := serveSSE(t, router, "firma1", StreamOptions{KeepaliveInterval: 10 * time.Millisecond})
	require.Eventually(t, func() bool {
		return strings.Count(rec.String(), ": keepalive\n\n") >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSSEStreamSurvivesWriteFailures(t *testing.T) {
	router, _ := newTestRouter(t)

	stream, rec, cancel, done := serveSSE(t, router, "firma1", StreamOptions{KeepaliveInterval: 5 * time.Millisecond})
	defer cancel()
	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 1 }, time.Second, 5*time.Millisecond)

	rec.setFailing(true)
	require.NoError(t, router.Publish(context.Background(), ChangeEvent{Type: WorkerUpdated, FirmaID: "firma1"}))
	time.Sleep(30 * time.Millisecond)

	// Failed frames and keepalives leave the subscription in place until the
	// disconnect signal arrives.
	assert.NotEqual(t, StateClosed, stream.State())
	assert.Equal(t, 1, router.SubscriberCount("firma1"))

	rec.setFailing(false)
	require.NoError(t, router.Publish(context.Background(), ChangeEvent{Type: WorkerDeleted, FirmaID: "firma1"}))
	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), `"type":"worker_deleted"`)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, router.SubscriberCount("firma1"))
}

func TestSSEStreamWithoutSubscription(t *testing.T) {
	stream, rec, cancel, done := serveSSE(t, failingSubscriber{}, "firma1", StreamOptions{KeepaliveInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), ": keepalive\n\n")
	}, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(rec.String(), "data: {\"type\":\"connected\"}\n\n"))

	cancel()
	<-done
	assert.Equal(t, StateClosed, stream.State())
}

func TestSSEStreamCloseFromOutside(t *testing.T) {
	router, _ := newTestRouter(t)

	stream, _, cancel, done := serveSSE(t, router, "firma1", StreamOptions{KeepaliveInterval: time.Hour})
	defer cancel()
	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 1 }, time.Second, 5*time.Millisecond)

	stream.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after Close")
	}
	assert.Zero(t, router.SubscriberCount("firma1"))
}

func TestSSEStreamEndsWhenRouterCloses(t *testing.T) {
	router, _ := newTestRouter(t)

	stream := NewSSEStream(router, "firma1", StreamOptions{KeepaliveInterval: time.Hour})
	rec := newSyncRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Serve(context.Background(), rec)
	}()
	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, router.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("stream still open after router close, state=%s", stream.State())
	}
	assert.Equal(t, StateClosed, stream.State())
	assert.Zero(t, router.SubscriberCount("firma1"))
}

func TestStreamOpenedAfterRouterCloseEndsImmediately(t *testing.T) {
	router, _ := newTestRouter(t)
	require.NoError(t, router.Close())

	_, _, cancel, done := serveSSE(t, router, "firma1", StreamOptions{KeepaliveInterval: time.Hour})
	defer cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream outlived a closed router")
	}
}

func TestWebSocketStream(t *testing.T) {
	router, _ := newTestRouter(t)
	upgrader := NewUpgrader(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewWebSocketStream(router, "firma1", conn, StreamOptions{}).Serve(r.Context())
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(msg))

	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, router.Publish(context.Background(), ChangeEvent{Type: ServiceCreated, FirmaID: "firma1"}))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_created","firmaID":"firma1"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return router.SubscriberCount("firma1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUpgraderOrigins(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodGet, "/scheduling/ws", nil)
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))
}
