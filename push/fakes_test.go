package push

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"scheduling-server/models"
)

type memStore struct {
	mu        sync.Mutex
	nextID    uint
	workers   map[string]string // workerID -> userID
	directors map[string][]string
	disabled  map[string]bool
	subs      []models.PushSubscription
	touched   map[uint]int
	clients   map[string]string
	names     map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		workers:   map[string]string{},
		directors: map[string][]string{},
		disabled:  map[string]bool{},
		touched:   map[uint]int{},
		clients:   map[string]string{},
		names:     map[string]string{},
	}
}

func (m *memStore) addSub(userID, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.subs = append(m.subs, models.PushSubscription{ID: m.nextID, UserID: userID, Endpoint: endpoint, P256dh: "p", Auth: "a"})
}

func (m *memStore) endpoints(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s.Endpoint)
		}
	}
	sort.Strings(out)
	return out
}

func (m *memStore) WorkerUserIDs(_ context.Context, workerIDs []string) ([]string, error) {
	var out []string
	for _, id := range workerIDs {
		if uid, ok := m.workers[id]; ok && uid != "" {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (m *memStore) DirectorUserIDs(_ context.Context, firmaID string) ([]string, error) {
	return m.directors[firmaID], nil
}

func (m *memStore) Subscriptions(_ context.Context, userID string) ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) LatestSubscription(ctx context.Context, userID string) (*models.PushSubscription, error) {
	subs, _ := m.Subscriptions(ctx, userID)
	if len(subs) == 0 {
		return nil, ErrNoSubscription
	}
	return &subs[len(subs)-1], nil
}

func (m *memStore) PushEnabled(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled[userID], nil
}

func (m *memStore) SaveSubscription(_ context.Context, sub models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].Endpoint == sub.Endpoint {
			sub.ID = m.subs[i].ID
			m.subs[i] = sub
			return nil
		}
	}
	m.nextID++
	sub.ID = m.nextID
	m.subs = append(m.subs, sub)
	return nil
}

func (m *memStore) RemoveSubscription(_ context.Context, userID, endpoint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.UserID == userID && s.Endpoint == endpoint {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) PruneSubscription(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := 0
	kept := m.subs[:0]
	for _, s := range m.subs {
		if s.Endpoint == endpoint {
			continue
		}
		if s.UserID == userID {
			remaining++
		}
		kept = append(kept, s)
	}
	m.subs = kept
	if remaining == 0 {
		m.disabled[userID] = true
	}
	return nil
}

func (m *memStore) Touch(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[id]++
	return nil
}

func (m *memStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) ClientName(_ context.Context, clientID string) (string, error) {
	if name, ok := m.clients[clientID]; ok {
		return name, nil
	}
	return fallbackClientName, nil
}

func (m *memStore) WorkerNames(_ context.Context, workerIDs []string) ([]string, error) {
	var out []string
	for _, id := range workerIDs {
		if name, ok := m.names[id]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

type sent struct {
	Endpoint string
	Message  Message
}

// fakeSender records deliveries; failures maps an endpoint to the error it
// returns.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sent
	failures map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: map[string]error{}}
}

func (f *fakeSender) Send(_ context.Context, sub models.PushSubscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[sub.Endpoint]; ok {
		return err
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	f.sent = append(f.sent, sent{Endpoint: sub.Endpoint, Message: msg})
	return nil
}

// titlesFor returns the titles delivered to endpoint, in order.
func (f *fakeSender) titlesFor(endpoint string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.Endpoint == endpoint {
			out = append(out, s.Message.Title)
		}
	}
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
