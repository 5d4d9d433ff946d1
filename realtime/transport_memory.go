package realtime

import (
	"context"
	"sync"
)

// MemoryTransport delivers notifications within one process. It backs
// single-instance deployments and tests.
type MemoryTransport struct {
	mu       sync.RWMutex
	channels map[string]bool
	out      chan Notification
	closed   bool
}

func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryTransport{
		channels: make(map[string]bool),
		out:      make(chan Notification, buffer),
	}
}

func (t *MemoryTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrTransportClosed
	}
	if !t.channels[channel] {
		return nil
	}

	msg := Notification{Channel: channel, Payload: append([]byte(nil), payload...)}
	select {
	case t.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *MemoryTransport) Listen(_ context.Context, channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.channels[channel] = true
	return nil
}

func (t *MemoryTransport) Unlisten(_ context.Context, channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, channel)
	return nil
}

// Listening reports whether channel is currently listened on.
func (t *MemoryTransport) Listening(channel string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.channels[channel]
}

func (t *MemoryTransport) Notifications() <-chan Notification {
	return t.out
}

func (t *MemoryTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

func (t *MemoryTransport) Reconnects() int64 {
	return 0
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.out)
	return nil
}
