package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduling-server/models"
)

// ErrNoSubscription means the user has no registered endpoint.
var ErrNoSubscription = errors.New("push: no subscription registered")

// Store is the read and prune surface the push service needs.
type Store interface {
	WorkerUserIDs(ctx context.Context, workerIDs []string) ([]string, error)
	DirectorUserIDs(ctx context.Context, firmaID string) ([]string, error)
	Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	LatestSubscription(ctx context.Context, userID string) (*models.PushSubscription, error)
	PushEnabled(ctx context.Context, userID string) (bool, error)
	SaveSubscription(ctx context.Context, sub models.PushSubscription) error
	RemoveSubscription(ctx context.Context, userID, endpoint string) (bool, error)
	PruneSubscription(ctx context.Context, userID, endpoint string) error
	Touch(ctx context.Context, id uint) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	ClientName(ctx context.Context, clientID string) (string, error)
	WorkerNames(ctx context.Context, workerIDs []string) ([]string, error)
}

// GormStore implements Store on the scheduling database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WorkerUserIDs(ctx context.Context, workerIDs []string) ([]string, error) {
	if len(workerIDs) == 0 {
		return nil, nil
	}
	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.Worker{}).
		Where(`"workerID" IN ? AND "userID" IS NOT NULL`, workerIDs).
		Pluck("userID", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("resolve worker users: %w", err)
	}
	return userIDs, nil
}

func (s *GormStore) DirectorUserIDs(ctx context.Context, firmaID string) ([]string, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where(`"firmaID" = ? AND ("status" IN (0, 3) OR "status" IS NULL)`, firmaID).
		Pluck("userID", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("resolve directors: %w", err)
	}
	return userIDs, nil
}

func (s *GormStore) Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	if err := s.db.WithContext(ctx).Where(`"userID" = ?`, userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) LatestSubscription(ctx context.Context, userID string) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.db.WithContext(ctx).
		Where(`"userID" = ?`, userID).
		Order(`"lastUsedAt" DESC NULLS LAST`).
		Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("load latest subscription: %w", err)
	}
	return &sub, nil
}

// PushEnabled is true unless the user explicitly turned push off.
func (s *GormStore) PushEnabled(ctx context.Context, userID string) (bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("userID", "pushNotificationsEnabled").
		Where(`"userID" = ?`, userID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load push preference: %w", err)
	}
	return user.PushAllowed(), nil
}

// SaveSubscription upserts on endpoint, re-binding it to sub.UserID.
func (s *GormStore) SaveSubscription(ctx context.Context, sub models.PushSubscription) error {
	now := time.Now()
	sub.LastUsedAt = &now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"userID", "p256dh", "auth", "lastUsedAt"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *GormStore) RemoveSubscription(ctx context.Context, userID, endpoint string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where(`"userID" = ? AND "endpoint" = ?`, userID, endpoint).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return false, fmt.Errorf("remove subscription: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// PruneSubscription deletes a dead endpoint and clears the user's push flag
// when it was their last one.
func (s *GormStore) PruneSubscription(ctx context.Context, userID, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(`"endpoint" = ?`, endpoint).Delete(&models.PushSubscription{}).Error; err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}

		var remaining int64
		if err := tx.Model(&models.PushSubscription{}).Where(`"userID" = ?`, userID).Count(&remaining).Error; err != nil {
			return fmt.Errorf("count subscriptions: %w", err)
		}
		if remaining > 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).
			Where(`"userID" = ?`, userID).
			Update("pushNotificationsEnabled", false).Error; err != nil {
			return fmt.Errorf("clear push flag: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Touch(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where(`"id" = ?`, id).
		Update("lastUsedAt", time.Now()).Error
}

// DeleteStale removes endpoints unused since cutoff and clears the push flag
// of users left without any endpoint.
func (s *GormStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []models.PushSubscription
		result := tx.Clauses(clause.Returning{Columns: []clause.Column{{Name: "userID"}}}).
			Where(`COALESCE("lastUsedAt", "createdAt") < ?`, cutoff).
			Delete(&stale)
		if result.Error != nil {
			return fmt.Errorf("delete stale subscriptions: %w", result.Error)
		}
		deleted = result.RowsAffected
		if len(stale) == 0 {
			return nil
		}

		userIDs := make([]string, 0, len(stale))
		for _, sub := range stale {
			userIDs = append(userIDs, sub.UserID)
		}
		return tx.Exec(`UPDATE users SET "pushNotificationsEnabled" = FALSE
			WHERE "userID" IN ?
			AND NOT EXISTS (SELECT 1 FROM push_subscriptions ps WHERE ps."userID" = users."userID")`, userIDs).Error
	})
	return deleted, err
}

// ClientName returns "name surname" of the client, or "a client".
func (s *GormStore) ClientName(ctx context.Context, clientID string) (string, error) {
	var client models.Client
	err := s.db.WithContext(ctx).
		Select("clientID", "name", "surname").
		Where(`"clientID" = ?`, clientID).
		Take(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallbackClientName, nil
		}
		return fallbackClientName, fmt.Errorf("load client name: %w", err)
	}
	if name := client.FullName(); name != "" {
		return name, nil
	}
	return fallbackClientName, nil
}

func (s *GormStore) WorkerNames(ctx context.Context, workerIDs []string) ([]string, error) {
	if len(workerIDs) == 0 {
		return nil, nil
	}
	var workers []models.Worker
	err := s.db.WithContext(ctx).
		Select("workerID", "name", "surname").
		Where(`"workerID" IN ?`, workerIDs).
		Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("load worker names: %w", err)
	}
	names := make([]string, 0, len(workers))
	for i := range workers {
		names = append(names, workers[i].FullName())
	}
	return names, nil
}
