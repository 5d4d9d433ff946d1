package realtime

import (
	"context"
	"errors"
)

// Notification is one message received on a listened channel.
type Notification struct {
	Channel string
	Payload []byte
}

// Transport is the pub/sub primitive behind the router. Listen and Unlisten
// are called at most once per channel transition; the router keeps the
// reference counts.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Listen(ctx context.Context, channel string) error
	Unlisten(ctx context.Context, channel string) error
	Notifications() <-chan Notification
	Connected() bool
	Reconnects() int64
	Close() error
}

// ErrTransportClosed is returned by operations on a closed transport.
var ErrTransportClosed = errors.New("transport closed")
