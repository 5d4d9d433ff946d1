package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu      sync.Mutex
	cutoffs []time.Time
	removed int64
	err     error
}

func (f *fakeSweeper) SweepStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.removed, f.err
}

func (f *fakeSweeper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestSweepUsesRetentionCutoff(t *testing.T) {
	fake := &fakeSweeper{removed: 3}
	job := NewSubscriptionSweeper(fake, time.Hour, 90*24*time.Hour)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	assert.Equal(t, int64(3), job.Sweep())
	require.Len(t, fake.cutoffs, 1)
	assert.Equal(t, now.Add(-90*24*time.Hour), fake.cutoffs[0])
}

func TestSweepSwallowsErrors(t *testing.T) {
	job := NewSubscriptionSweeper(&fakeSweeper{err: errors.New("db down")}, time.Hour, time.Hour)
	assert.Zero(t, job.Sweep())
}

func TestSweeperRunsOnStartAndOnTicks(t *testing.T) {
	fake := &fakeSweeper{}
	job := NewSubscriptionSweeper(fake, 10*time.Millisecond, time.Hour)
	job.Start()

	assert.Eventually(t, func() bool { return fake.calls() >= 3 }, time.Second, 5*time.Millisecond)
	job.Stop()
	calls := fake.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, fake.calls())

	job.Stop()
}
