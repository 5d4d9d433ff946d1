package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
	"scheduling-server/models"
)

// Message is the JSON payload the service worker renders.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// SubscriptionInput is a browser PushSubscription as posted by the client.
type SubscriptionInput struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// VerifyResult is the outcome of a synchronous verification ping.
type VerifyResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

const (
	ReasonNoSubscription = "Device is completely disconnected from the Backend."
	ReasonRevoked        = "Token was revoked by the device or Safari. Device disconnected."
)

var verifyMessage = Message{
	Title: "System Ping",
	Body:  "Direct verification ping from Director. Connection is stable.",
	Tag:   "ping",
}

// Service resolves recipients and delivers best-effort push notifications.
type Service struct {
	store  Store
	sender Sender
	log    zerolog.Logger
}

// NewService builds the push service. A nil sender leaves push unconfigured:
// deliveries are skipped and Verify returns ErrNotConfigured.
func NewService(store Store, sender Sender) *Service {
	return &Service{
		store:  store,
		sender: sender,
		log:    logger.WithComponent("push"),
	}
}

func (s *Service) Configured() bool {
	return s.sender != nil
}

// SendToUser delivers msg to every endpoint of userID concurrently. Gone
// endpoints are pruned; other failures are logged and not returned.
func (s *Service) SendToUser(ctx context.Context, userID string, msg Message) error {
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	enabled, err := s.store.PushEnabled(ctx, userID)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	if s.sender == nil {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()
			s.deliver(ctx, userID, sub, payload)
		}(sub)
	}
	wg.Wait()
	return nil
}

func (s *Service) deliver(ctx context.Context, userID string, sub models.PushSubscription, payload []byte) {
	err := s.sender.Send(ctx, sub, payload)
	switch {
	case err == nil:
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
		if err := s.store.Touch(ctx, sub.ID); err != nil {
			s.log.Debug().Err(err).Uint("subscription_id", sub.ID).Msg("Failed to update lastUsedAt")
		}
	case IsGone(err):
		metrics.PushDeliveries.WithLabelValues("gone").Inc()
		if err := s.store.PruneSubscription(ctx, userID, sub.Endpoint); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to prune expired subscription")
			return
		}
		metrics.PushSubscriptionsPruned.WithLabelValues("gone").Inc()
		s.log.Info().Str("user_id", userID).Msg("Removed expired subscription")
	default:
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to send push")
	}
}

// SendToWorkers resolves workers to their linked users and pushes to each.
// Workers without a login are skipped.
func (s *Service) SendToWorkers(ctx context.Context, workerIDs []string, msg Message) error {
	if len(workerIDs) == 0 {
		return nil
	}
	userIDs, err := s.store.WorkerUserIDs(ctx, workerIDs)
	if err != nil {
		return err
	}
	return s.sendToUsers(ctx, userIDs, msg)
}

// SendToDirectors pushes to every director and manager of firmaID.
func (s *Service) SendToDirectors(ctx context.Context, firmaID string, msg Message) error {
	userIDs, err := s.store.DirectorUserIDs(ctx, firmaID)
	if err != nil {
		return err
	}
	return s.sendToUsers(ctx, userIDs, msg)
}

func (s *Service) sendToUsers(ctx context.Context, userIDs []string, msg Message) error {
	if len(userIDs) == 0 {
		return nil
	}
	if s.sender == nil {
		return ErrNotConfigured
	}

	var wg sync.WaitGroup
	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if err := s.SendToUser(ctx, userID, msg); err != nil {
				s.log.Error().Err(err).Str("user_id", userID).Msg("Push to user failed")
			}
		}(userID)
	}
	wg.Wait()
	return nil
}

// Verify pings the most recently used endpoint of userID and reports the
// outcome. A revoked endpoint is pruned like on the asynchronous path.
func (s *Service) Verify(ctx context.Context, userID string) (VerifyResult, error) {
	sub, err := s.store.LatestSubscription(ctx, userID)
	if errors.Is(err, ErrNoSubscription) {
		return VerifyResult{Reason: ReasonNoSubscription}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}

	if s.sender == nil {
		return VerifyResult{}, ErrNotConfigured
	}

	payload, err := json.Marshal(verifyMessage)
	if err != nil {
		return VerifyResult{}, err
	}

	err = s.sender.Send(ctx, *sub, payload)
	switch {
	case err == nil:
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
		if err := s.store.Touch(ctx, sub.ID); err != nil {
			s.log.Debug().Err(err).Uint("subscription_id", sub.ID).Msg("Failed to update lastUsedAt")
		}
		return VerifyResult{Success: true}, nil
	case IsGone(err):
		metrics.PushDeliveries.WithLabelValues("gone").Inc()
		if err := s.store.PruneSubscription(ctx, userID, sub.Endpoint); err != nil {
			return VerifyResult{}, err
		}
		metrics.PushSubscriptionsPruned.WithLabelValues("gone").Inc()
		return VerifyResult{Reason: ReasonRevoked}, nil
	default:
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		return VerifyResult{Reason: fmt.Sprintf("Push provider error: %v", err)}, nil
	}
}

// Subscribe registers or re-binds an endpoint for userID.
func (s *Service) Subscribe(ctx context.Context, userID string, in SubscriptionInput) error {
	return s.store.SaveSubscription(ctx, models.PushSubscription{
		UserID:   userID,
		Endpoint: in.Endpoint,
		P256dh:   in.Keys.P256dh,
		Auth:     in.Keys.Auth,
	})
}

// Unsubscribe removes one endpoint owned by userID. It reports whether a
// row was deleted.
func (s *Service) Unsubscribe(ctx context.Context, userID, endpoint string) (bool, error) {
	removed, err := s.store.RemoveSubscription(ctx, userID, endpoint)
	if err != nil {
		return false, err
	}
	if removed {
		metrics.PushSubscriptionsPruned.WithLabelValues("unsubscribed").Inc()
	}
	return removed, nil
}

// SweepStale deletes endpoints unused since cutoff.
func (s *Service) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.PushSubscriptionsPruned.WithLabelValues("stale").Add(float64(n))
	return n, nil
}
