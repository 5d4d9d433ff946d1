package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"scheduling-server/config"
	"scheduling-server/logger"
	"scheduling-server/metrics"
)

// ErrUnrecognisedURL is returned when a photo URL does not belong to the
// configured store.
var ErrUnrecognisedURL = errors.New("storage: url does not point into the object store")

// ObjectStore deletes a stored object identified by its public URL.
type ObjectStore interface {
	Delete(ctx context.Context, url string) error
}

// New builds the object store selected by cfg.Backend.
func New(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		return NewS3Store(cfg)
	case config.StorageBackendCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryURL)
	case config.StorageBackendNone, "":
		return NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NoopStore is used when no object store is configured.
type NoopStore struct{}

func (NoopStore) Delete(context.Context, string) error { return nil }

// PhotoCleaner deletes report photos after their rows are gone.
type PhotoCleaner struct {
	store ObjectStore
	log   zerolog.Logger
}

func NewPhotoCleaner(store ObjectStore) *PhotoCleaner {
	return &PhotoCleaner{
		store: store,
		log:   logger.WithComponent("photo-cleanup"),
	}
}

// DeleteAll issues one delete per URL concurrently. Attempts are
// independent; it returns the number that failed.
func (c *PhotoCleaner) DeleteAll(ctx context.Context, urls []string) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := c.store.Delete(ctx, url); err != nil {
				metrics.PhotoDeletes.WithLabelValues("failed").Inc()
				c.log.Error().Err(err).Str("url", url).Msg("Failed to delete report photo")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			metrics.PhotoDeletes.WithLabelValues("deleted").Inc()
		}(url)
	}
	wg.Wait()
	return failed
}
