package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
)

const listenerPingInterval = 90 * time.Second

// PostgresTransport carries tenant channels over LISTEN/NOTIFY. Publishing
// goes through the shared pool; listening holds one dedicated connection that
// pq reconnects and re-LISTENs on its own.
type PostgresTransport struct {
	db       *sql.DB
	listener *pq.Listener
	out      chan Notification
	done     chan struct{}

	connected  atomic.Bool
	reconnects atomic.Int64
	closeOnce  sync.Once
	log        zerolog.Logger
}

// NewPostgresTransport opens the listener connection described by dsn.
func NewPostgresTransport(dsn string, db *sql.DB, minReconnect, maxReconnect time.Duration) *PostgresTransport {
	t := &PostgresTransport{
		db:   db,
		out:  make(chan Notification, 256),
		done: make(chan struct{}),
		log:  logger.WithComponent("pg-transport"),
	}
	t.listener = pq.NewListener(dsn, minReconnect, maxReconnect, t.onListenerEvent)
	go t.forward()
	return t
}

func (t *PostgresTransport) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		t.connected.Store(true)
		t.log.Info().Msg("Listener connected")
	case pq.ListenerEventDisconnected:
		t.connected.Store(false)
		t.log.Warn().Err(err).Msg("Listener disconnected")
	case pq.ListenerEventReconnected:
		t.connected.Store(true)
		t.reconnects.Add(1)
		metrics.TransportReconnects.Inc()
		t.log.Info().Msg("Listener reconnected, channels re-listened")
	case pq.ListenerEventConnectionAttemptFailed:
		t.log.Error().Err(err).Msg("Listener connection attempt failed")
	}
}

func (t *PostgresTransport) forward() {
	defer close(t.out)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	notify := t.listener.NotificationChannel()
	for {
		select {
		case n, ok := <-notify:
			if !ok {
				return
			}
			// pq sends nil after a reconnect; anything missed in between is
			// recovered by clients refetching.
			if n == nil {
				continue
			}
			select {
			case t.out <- Notification{Channel: n.Channel, Payload: []byte(n.Extra)}:
			case <-t.done:
				return
			}
		case <-ticker.C:
			go func() {
				if err := t.listener.Ping(); err != nil {
					t.log.Warn().Err(err).Msg("Listener ping failed")
				}
			}()
		case <-t.done:
			return
		}
	}
}

func (t *PostgresTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if _, err := t.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", channel, err)
	}
	return nil
}

func (t *PostgresTransport) Listen(_ context.Context, channel string) error {
	err := t.listener.Listen(channel)
	if err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	return nil
}

func (t *PostgresTransport) Unlisten(_ context.Context, channel string) error {
	err := t.listener.Unlisten(channel)
	if err != nil && !errors.Is(err, pq.ErrChannelNotOpen) {
		return fmt.Errorf("unlisten %s: %w", channel, err)
	}
	return nil
}

func (t *PostgresTransport) Notifications() <-chan Notification {
	return t.out
}

func (t *PostgresTransport) Connected() bool {
	return t.connected.Load()
}

func (t *PostgresTransport) Reconnects() int64 {
	return t.reconnects.Load()
}

func (t *PostgresTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.listener.Close()
	})
	return err
}
