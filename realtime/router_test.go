package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *collector) handle(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func (c *collector) events(t *testing.T) []ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChangeEvent, 0, len(c.payloads))
	for _, p := range c.payloads {
		var ev ChangeEvent
		require.NoError(t, json.Unmarshal(p, &ev))
		out = append(out, ev)
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newTestRouter(t *testing.T) (*Router, *MemoryTransport) {
	t.Helper()
	transport := NewMemoryTransport(64)
	router := NewRouter(transport)
	t.Cleanup(func() { _ = router.Close() })
	return router, transport
}

func TestRouterBroadcastsToEverySubscriber(t *testing.T) {
	router, _ := newTestRouter(t)
	ctx := context.Background()

	var a, b collector
	unsubA, err := router.Subscribe(ctx, "firma1", a.handle)
	require.NoError(t, err)
	defer unsubA()
	unsubB, err := router.Subscribe(ctx, "firma1", b.handle)
	require.NoError(t, err)
	defer unsubB()

	isOpen := true
	require.NoError(t, router.Publish(ctx, ChangeEvent{
		Type:          AppointmentCreated,
		AppointmentID: "apt1",
		WorkerIDs:     []string{"w1", "w2"},
		ClientID:      "c1",
		IsOpen:        &isOpen,
		FirmaID:       "firma1",
	}))

	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, time.Second, 5*time.Millisecond)

	ev := a.events(t)[0]
	assert.Equal(t, AppointmentCreated, ev.Type)
	assert.Equal(t, "apt1", ev.AppointmentID)
	assert.Equal(t, []string{"w1", "w2"}, ev.WorkerIDs)
	assert.Equal(t, "firma1", ev.FirmaID)
}

func TestRouterTenantIsolationAcrossCollidingChannels(t *testing.T) {
	router, transport := newTestRouter(t)
	ctx := context.Background()

	// All three normalise to scheduling_acme_1.
	tenants := []string{"Acme-1", "acme.1", "ACME_1"}
	collectors := make([]*collector, len(tenants))
	for i, firmaID := range tenants {
		require.Equal(t, "scheduling_acme_1", ChannelName(firmaID))
		collectors[i] = &collector{}
		unsub, err := router.Subscribe(ctx, firmaID, collectors[i].handle)
		require.NoError(t, err)
		defer unsub()
	}

	require.NoError(t, router.Publish(ctx, ChangeEvent{Type: ClientUpdated, FirmaID: "acme.1"}))
	require.Eventually(t, func() bool { return collectors[1].count() == 1 }, time.Second, 5*time.Millisecond)

	// A second event flushes the dispatch loop before asserting on the others.
	require.NoError(t, router.Publish(ctx, ChangeEvent{Type: ClientDeleted, FirmaID: "acme.1"}))
	require.Eventually(t, func() bool { return collectors[1].count() == 2 }, time.Second, 5*time.Millisecond)

	assert.Zero(t, collectors[0].count())
	assert.Zero(t, collectors[2].count())
	assert.True(t, transport.Listening("scheduling_acme_1"))
}

func TestRouterSharedChannelStaysListenedUntilLastTenantLeaves(t *testing.T) {
	router, transport := newTestRouter(t)
	ctx := context.Background()

	unsubA, err := router.Subscribe(ctx, "Acme", func([]byte) {})
	require.NoError(t, err)
	unsubB, err := router.Subscribe(ctx, "acme", func([]byte) {})
	require.NoError(t, err)

	unsubA()
	assert.True(t, transport.Listening("scheduling_acme"))
	unsubB()
	assert.False(t, transport.Listening("scheduling_acme"))
}

func TestRouterUnsubscribeIsIdempotent(t *testing.T) {
	router, transport := newTestRouter(t)
	ctx := context.Background()

	unsubA, err := router.Subscribe(ctx, "firma1", func([]byte) {})
	require.NoError(t, err)
	unsubB, err := router.Subscribe(ctx, "firma1", func([]byte) {})
	require.NoError(t, err)

	unsubA()
	unsubA()
	unsubA()

	assert.Equal(t, 1, router.SubscriberCount("firma1"))
	assert.True(t, transport.Listening("scheduling_firma1"))

	stats := router.Stats()
	assert.Equal(t, 1, stats.TotalSubscribers)
	assert.Equal(t, 1, stats.ActiveChannels)

	unsubB()
	unsubB()
	assert.Zero(t, router.SubscriberCount("firma1"))
	assert.Zero(t, router.Stats().ActiveChannels)
	assert.False(t, transport.Listening("scheduling_firma1"))
}

func TestRouterConcurrentSubscribeUnsubscribe(t *testing.T) {
	router, _ := newTestRouter(t)
	ctx := context.Background()

	var keep collector
	unsubKeep, err := router.Subscribe(ctx, "firma1", keep.handle)
	require.NoError(t, err)
	defer unsubKeep()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub, err := router.Subscribe(ctx, "firma1", func([]byte) {})
			if err != nil {
				return
			}
			unsub()
			unsub()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, router.SubscriberCount("firma1"))

	require.NoError(t, router.Publish(ctx, ChangeEvent{Type: TeamCreated, FirmaID: "firma1"}))
	require.Eventually(t, func() bool { return keep.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRouterSurvivesBadPayloadAndPanickingHandler(t *testing.T) {
	router, transport := newTestRouter(t)
	ctx := context.Background()

	var good collector
	unsubBad, err := router.Subscribe(ctx, "firma1", func([]byte) { panic("boom") })
	require.NoError(t, err)
	defer unsubBad()
	unsubGood, err := router.Subscribe(ctx, "firma1", good.handle)
	require.NoError(t, err)
	defer unsubGood()

	require.NoError(t, transport.Publish(ctx, "scheduling_firma1", []byte("not json")))
	require.NoError(t, transport.Publish(ctx, "scheduling_firma1", []byte(`{"type":"team_created","firmaID":"other"}`)))
	require.NoError(t, router.Publish(ctx, ChangeEvent{Type: TeamCreated, FirmaID: "firma1"}))

	require.Eventually(t, func() bool { return good.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, router.Stats().TotalEventsProcessed)
	assert.Equal(t, 1, router.Stats().EventsPerMinute)
}

func TestRouterPublishRequiresTenant(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Error(t, router.Publish(context.Background(), ChangeEvent{Type: TeamCreated}))
}

func TestChangeEventWireFormat(t *testing.T) {
	opened := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	isOpen := true

	data, err := json.Marshal(ChangeEvent{
		Type:          AppointmentUpdated,
		AppointmentID: "apt1",
		WorkerIDs:     []string{"w1"},
		ClientID:      "c1",
		IsOpen:        &isOpen,
		OpenedAt:      NewNullableTime(&opened),
		ClosedAt:      NewNullableTime(nil),
		FirmaID:       "f1",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"appointment_updated","appointmentID":"apt1","workerIds":["w1"],"clientID":"c1","isOpen":true,"openedAt":"2026-03-01T09:30:00Z","closedAt":null,"firmaID":"f1"}`, string(data))

	data, err = json.Marshal(ChangeEvent{Type: GroupeDeleted, FirmaID: "f1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"groupe_deleted","firmaID":"f1"}`, string(data))
}
