package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scheduling-server/logger"
)

// StaleSweeper deletes push endpoints unused since a cutoff.
type StaleSweeper interface {
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// SubscriptionSweeper periodically removes push subscriptions that have not
// delivered anything within the retention window.
type SubscriptionSweeper struct {
	sweeper   StaleSweeper
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSubscriptionSweeper(sweeper StaleSweeper, interval, retention time.Duration) *SubscriptionSweeper {
	return &SubscriptionSweeper{
		sweeper:   sweeper,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		log:       logger.WithComponent("subscription-sweeper"),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval.
func (j *SubscriptionSweeper) Start() {
	go j.run()
	j.log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("Subscription sweeper started")
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (j *SubscriptionSweeper) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	<-j.done
	j.log.Info().Msg("Subscription sweeper stopped")
}

func (j *SubscriptionSweeper) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep()
	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stopChan:
			return
		}
	}
}

// Sweep performs one pass and returns the number of removed endpoints.
func (j *SubscriptionSweeper) Sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	n, err := j.sweeper.SweepStale(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to sweep stale subscriptions")
		return 0
	}
	if n > 0 {
		j.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Removed stale push subscriptions")
	}
	return n
}
