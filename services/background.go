package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
)

// Background runs post-commit side effects detached from the request that
// triggered them. Failures and panics are logged, never returned.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     zerolog.Logger
}

func NewBackground(timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{
		timeout: timeout,
		log:     logger.WithComponent("background"),
	}
}

// Go starts fn on its own goroutine with a fresh context bounded by the
// runner's timeout.
func (b *Background) Go(task string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Error().Interface("panic", rec).Str("task", task).Msg("Background task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		timer := metrics.NewTimer()
		err := fn(ctx)
		timer.ObserveDuration(metrics.DetachedTaskDuration.WithLabelValues(task))
		if err != nil {
			b.log.Error().Err(err).Str("task", task).Msg("Background task failed")
		}
	}()
}

// Wait blocks until every started task has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}
