package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendToUserDeliversToEveryEndpoint(t *testing.T) {
	store := newMemStore()
	store.addSub("u1", "https://push/a")
	store.addSub("u1", "https://push/b")
	sender := newFakeSender()
	svc := NewService(store, sender)

	require.NoError(t, svc.SendToUser(context.Background(), "u1", Message{Title: "Hello"}))

	assert.Equal(t, []string{"Hello"}, sender.titlesFor("https://push/a"))
	assert.Equal(t, []string{"Hello"}, sender.titlesFor("https://push/b"))
	assert.Equal(t, 1, store.touched[1])
	assert.Equal(t, 1, store.touched[2])
}

func TestSendToUserRespectsPreference(t *testing.T) {
	store := newMemStore()
	store.addSub("u1", "https://push/a")
	store.disabled["u1"] = true
	sender := newFakeSender()

	require.NoError(t, NewService(store, sender).SendToUser(context.Background(), "u1", Message{Title: "Hello"}))
	assert.Zero(t, sender.count())
}

func TestSendToUserWithoutEndpointsIsNoop(t *testing.T) {
	// Even an unconfigured service has nothing to report for a user without
	// endpoints.
	svc := NewService(newMemStore(), nil)
	assert.NoError(t, svc.SendToUser(context.Background(), "nobody", Message{Title: "Hello"}))
}

func TestSendToUserPrunesGoneEndpoints(t *testing.T) {
	store := newMemStore()
	store.addSub("u1", "https://push/dead")
	store.addSub("u1", "https://push/alive")
	sender := newFakeSender()
	sender.failures["https://push/dead"] = &GoneError{StatusCode: 410}

	require.NoError(t, NewService(store, sender).SendToUser(context.Background(), "u1", Message{Title: "Hello"}))

	assert.Equal(t, []string{"https://push/alive"}, store.endpoints("u1"))
	assert.False(t, store.disabled["u1"], "flag stays while an endpoint remains")
	assert.Equal(t, []string{"Hello"}, sender.titlesFor("https://push/alive"))
}

func TestSendToUserClearsFlagWhenLastEndpointPruned(t *testing.T) {
	store := newMemStore()
	store.addSub("u1", "https://push/dead")
	sender := newFakeSender()
	sender.failures["https://push/dead"] = &GoneError{StatusCode: 404}

	require.NoError(t, NewService(store, sender).SendToUser(context.Background(), "u1", Message{Title: "Hello"}))

	assert.Empty(t, store.endpoints("u1"))
	assert.True(t, store.disabled["u1"])
}

func TestSendToUserTransientFailureKeepsEndpoint(t *testing.T) {
	store := newMemStore()
	store.addSub("u1", "https://push/flaky")
	store.addSub("u1", "https://push/ok")
	sender := newFakeSender()
	sender.failures["https://push/flaky"] = &ProviderError{StatusCode: 500}

	require.NoError(t, NewService(store, sender).SendToUser(context.Background(), "u1", Message{Title: "Hello"}))

	assert.Equal(t, []string{"https://push/flaky", "https://push/ok"}, store.endpoints("u1"))
	assert.Equal(t, []string{"Hello"}, sender.titlesFor("https://push/ok"))
	assert.Zero(t, store.touched[1])
}

func TestSendToWorkersSkipsUnlinkedWorkers(t *testing.T) {
	store := newMemStore()
	store.workers["w1"] = "u1"
	store.workers["w2"] = ""
	store.addSub("u1", "https://push/u1")
	sender := newFakeSender()

	require.NoError(t, NewService(store, sender).SendToWorkers(context.Background(), []string{"w1", "w2", "w3"}, Message{Title: "Hi"}))
	assert.Equal(t, 1, sender.count())
}

func TestSendToDirectorsUnconfigured(t *testing.T) {
	store := newMemStore()
	store.directors["firma1"] = []string{"d1"}

	err := NewService(store, nil).SendToDirectors(context.Background(), "firma1", Message{Title: "Hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		res, err := NewService(newMemStore(), newFakeSender()).Verify(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, VerifyResult{Reason: ReasonNoSubscription}, res)
	})

	t.Run("not configured", func(t *testing.T) {
		store := newMemStore()
		store.addSub("u1", "https://push/a")
		_, err := NewService(store, nil).Verify(ctx, "u1")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("success", func(t *testing.T) {
		store := newMemStore()
		store.addSub("u1", "https://push/a")
		sender := newFakeSender()
		res, err := NewService(store, sender).Verify(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, []string{"System Ping"}, sender.titlesFor("https://push/a"))
		assert.Equal(t, 1, store.touched[1])
	})

	t.Run("revoked", func(t *testing.T) {
		store := newMemStore()
		store.addSub("u1", "https://push/a")
		sender := newFakeSender()
		sender.failures["https://push/a"] = &GoneError{StatusCode: 410}
		res, err := NewService(store, sender).Verify(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, VerifyResult{Reason: ReasonRevoked}, res)
		assert.Empty(t, store.endpoints("u1"))
		assert.True(t, store.disabled["u1"])
	})

	t.Run("provider error", func(t *testing.T) {
		store := newMemStore()
		store.addSub("u1", "https://push/a")
		sender := newFakeSender()
		sender.failures["https://push/a"] = errors.New("connection reset")
		res, err := NewService(store, sender).Verify(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Reason, "connection reset")
		assert.Equal(t, []string{"https://push/a"}, store.endpoints("u1"))
	})
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, newFakeSender())

	var in SubscriptionInput
	in.Endpoint = "https://push/a"
	in.Keys.P256dh = "key"
	in.Keys.Auth = "secret"
	require.NoError(t, svc.Subscribe(ctx, "u1", in))
	assert.Equal(t, []string{"https://push/a"}, store.endpoints("u1"))

	// Another user cannot remove the endpoint.
	removed, err := svc.Unsubscribe(ctx, "u2", "https://push/a")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.Unsubscribe(ctx, "u1", "https://push/a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, store.endpoints("u1"))
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(&GoneError{StatusCode: 410}))
	assert.True(t, IsGone(errors.Join(errors.New("wrapped"), &GoneError{StatusCode: 404})))
	assert.False(t, IsGone(&ProviderError{StatusCode: 500}))
	assert.False(t, IsGone(nil))
}
