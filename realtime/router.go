package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
)

// Handler receives the raw envelope of every event on a tenant channel. It
// runs on the router's dispatch goroutine and must not block.
type Handler func(payload []byte)

// Publisher emits change events after a commit.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

type subscriber struct {
	id      string
	firmaID string
	handler Handler
}

// Router owns the tenant subscription registry and the transport behind it.
// Dispatch matches on the exact firmaID carried by the envelope, so tenants
// whose IDs normalise to the same channel name never see each other's events.
type Router struct {
	transport Transport
	log       zerolog.Logger

	// mu guards subscribers; dispatch takes it for reading only.
	mu          sync.RWMutex
	subscribers map[string]map[string]*subscriber

	// listenMu serialises channel reference counting with the transport's
	// LISTEN/UNLISTEN calls.
	listenMu    sync.Mutex
	channelRefs map[string]int

	processed atomic.Int64
	rateMu    sync.Mutex
	recent    []time.Time

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Stats is a point-in-time view of router activity.
type Stats struct {
	TransportConnected   bool  `json:"transportConnected"`
	ActiveChannels       int   `json:"activeChannels"`
	TotalSubscribers     int   `json:"totalSubscribers"`
	EventsPerMinute      int   `json:"eventsPerMinute"`
	TotalEventsProcessed int64 `json:"totalEventsProcessed"`
	ReconnectCount       int64 `json:"reconnectCount"`
}

// NewRouter starts dispatching notifications from transport.
func NewRouter(transport Transport) *Router {
	r := &Router{
		transport:   transport,
		log:         logger.WithComponent("router"),
		subscribers: make(map[string]map[string]*subscriber),
		channelRefs: make(map[string]int),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go r.dispatchLoop()
	return r
}

// Publish sends event on its tenant's channel.
func (r *Router) Publish(ctx context.Context, event ChangeEvent) error {
	if event.FirmaID == "" {
		return fmt.Errorf("publish %s: missing firmaID", event.Type)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	if err := r.transport.Publish(ctx, ChannelName(event.FirmaID), payload); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		return err
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	return nil
}

// Subscribe registers handler for every event of firmaID. The returned
// function removes the registration; calling it more than once is a no-op.
func (r *Router) Subscribe(ctx context.Context, firmaID string, handler Handler) (func(), error) {
	sub := &subscriber{
		id:      uuid.NewString(),
		firmaID: firmaID,
		handler: handler,
	}
	channel := ChannelName(firmaID)

	r.listenMu.Lock()
	defer r.listenMu.Unlock()

	r.addSubscriber(sub)

	if r.channelRefs[channel] == 0 {
		if err := r.transport.Listen(ctx, channel); err != nil {
			r.removeSubscriber(sub)
			return func() {}, fmt.Errorf("subscribe %s: %w", channel, err)
		}
		r.log.Debug().Str("channel", channel).Msg("Listening on tenant channel")
	}
	r.channelRefs[channel]++
	metrics.ActiveChannels.Set(float64(len(r.channelRefs)))

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(sub, channel) })
	}, nil
}

func (r *Router) unsubscribe(sub *subscriber, channel string) {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()

	if !r.removeSubscriber(sub) {
		return
	}

	refs := r.channelRefs[channel]
	if refs <= 1 {
		delete(r.channelRefs, channel)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.transport.Unlisten(ctx, channel); err != nil {
			r.log.Warn().Err(err).Str("channel", channel).Msg("Failed to unlisten tenant channel")
		}
	} else {
		r.channelRefs[channel] = refs - 1
	}
	metrics.ActiveChannels.Set(float64(len(r.channelRefs)))
}

func (r *Router) addSubscriber(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[sub.firmaID]
	if !ok {
		subs = make(map[string]*subscriber)
		r.subscribers[sub.firmaID] = subs
	}
	subs[sub.id] = sub
	metrics.Subscribers.Inc()
}

func (r *Router) removeSubscriber(sub *subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[sub.firmaID]
	if !ok {
		return false
	}
	if _, ok := subs[sub.id]; !ok {
		return false
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(r.subscribers, sub.firmaID)
	}
	metrics.Subscribers.Dec()
	return true
}

func (r *Router) dispatchLoop() {
	defer close(r.done)
	for n := range r.transport.Notifications() {
		r.dispatch(n)
	}
}

func (r *Router) dispatch(n Notification) {
	var header envelopeHeader
	if err := json.Unmarshal(n.Payload, &header); err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		r.log.Warn().Err(err).Str("channel", n.Channel).Msg("Dropping malformed event")
		return
	}
	if header.FirmaID == "" || ChannelName(header.FirmaID) != n.Channel {
		metrics.EventsDropped.WithLabelValues("channel_mismatch").Inc()
		r.log.Warn().Str("channel", n.Channel).Str("firma_id", header.FirmaID).Msg("Dropping event not addressed to its channel")
		return
	}

	r.recordEvent()

	r.mu.RLock()
	targets := make([]*subscriber, 0, len(r.subscribers[header.FirmaID]))
	for _, sub := range r.subscribers[header.FirmaID] {
		targets = append(targets, sub)
	}
	r.mu.RUnlock()

	for _, sub := range targets {
		r.deliver(sub, n.Payload)
	}
}

func (r *Router) deliver(sub *subscriber, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("subscriber", sub.id).Msg("Subscriber handler panicked")
		}
	}()
	sub.handler(payload)
	metrics.EventsDelivered.Inc()
}

func (r *Router) recordEvent() {
	r.processed.Add(1)

	now := time.Now()
	r.rateMu.Lock()
	r.recent = append(pruneBefore(r.recent, now.Add(-time.Minute)), now)
	r.rateMu.Unlock()
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

// SubscriberCount returns the live subscribers of firmaID.
func (r *Router) SubscriberCount(firmaID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[firmaID])
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	total := 0
	for _, subs := range r.subscribers {
		total += len(subs)
	}
	r.mu.RUnlock()

	r.listenMu.Lock()
	channels := len(r.channelRefs)
	r.listenMu.Unlock()

	r.rateMu.Lock()
	r.recent = pruneBefore(r.recent, time.Now().Add(-time.Minute))
	perMinute := len(r.recent)
	r.rateMu.Unlock()

	return Stats{
		TransportConnected:   r.transport.Connected(),
		ActiveChannels:       channels,
		TotalSubscribers:     total,
		EventsPerMinute:      perMinute,
		TotalEventsProcessed: r.processed.Load(),
		ReconnectCount:       r.transport.Reconnects(),
	}
}

// Done is closed when Close starts; streams end themselves on it.
func (r *Router) Done() <-chan struct{} {
	return r.closing
}

// Close ends every open stream, shuts the transport down and waits for the
// dispatch loop to drain.
func (r *Router) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closing)
		err = r.transport.Close()
		<-r.done
	})
	return err
}
