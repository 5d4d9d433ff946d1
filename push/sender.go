package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"scheduling-server/config"
	"scheduling-server/models"
)

// ErrNotConfigured is returned when VAPID credentials are missing.
var ErrNotConfigured = errors.New("push: VAPID keys are not configured")

// GoneError is a permanent rejection of an endpoint by the push provider.
type GoneError struct {
	StatusCode int
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("push endpoint gone (status %d)", e.StatusCode)
}

// IsGone reports whether err means the endpoint should be pruned.
func IsGone(err error) bool {
	var gone *GoneError
	return errors.As(err, &gone)
}

// ProviderError is any other non-2xx answer from the push provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("push provider returned status %d: %s", e.StatusCode, e.Body)
}

// Sender delivers one encrypted payload to one endpoint.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// VAPIDSender sends Web Push messages signed with the server's VAPID keys.
type VAPIDSender struct {
	options webpush.Options
	timeout time.Duration
}

func NewVAPIDSender(cfg config.PushConfig) (*VAPIDSender, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * 60 * 24
	}

	return &VAPIDSender{
		options: webpush.Options{
			HTTPClient: &http.Client{Timeout: timeout},
			// webpush-go adds the mailto: scheme itself.
			Subscriber:      strings.TrimPrefix(cfg.Subject, "mailto:"),
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             ttl,
			Urgency:         webpush.UrgencyHigh,
		},
		timeout: timeout,
	}, nil
}

func (s *VAPIDSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	options := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &options)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return &GoneError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
