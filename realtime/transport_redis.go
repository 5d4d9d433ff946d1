package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport carries tenant channels over Redis PUBLISH/SUBSCRIBE for
// deployments that run several API instances behind one broker.
type RedisTransport struct {
	client    *redis.Client
	pubsub    *redis.PubSub
	out       chan Notification
	closeOnce sync.Once
}

func NewRedisTransport(ctx context.Context, client *redis.Client) *RedisTransport {
	t := &RedisTransport{
		client: client,
		pubsub: client.Subscribe(ctx),
		out:    make(chan Notification, 256),
	}
	go t.forward()
	return t
}

func (t *RedisTransport) forward() {
	defer close(t.out)
	for msg := range t.pubsub.Channel() {
		t.out <- Notification{Channel: msg.Channel, Payload: []byte(msg.Payload)}
	}
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (t *RedisTransport) Listen(ctx context.Context, channel string) error {
	return t.pubsub.Subscribe(ctx, channel)
}

func (t *RedisTransport) Unlisten(ctx context.Context, channel string) error {
	return t.pubsub.Unsubscribe(ctx, channel)
}

func (t *RedisTransport) Notifications() <-chan Notification {
	return t.out
}

func (t *RedisTransport) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return t.client.Ping(ctx).Err() == nil
}

// Reconnects is not observable through go-redis; the client reconnects
// transparently.
func (t *RedisTransport) Reconnects() int64 {
	return 0
}

func (t *RedisTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = errors.Join(t.pubsub.Close(), t.client.Close())
	})
	return err
}
