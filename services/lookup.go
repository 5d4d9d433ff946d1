package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scheduling-server/models"
)

// workerForUser resolves the worker record linked to userID in firmaID.
// It returns nil without error when there is none.
func workerForUser(ctx context.Context, db *gorm.DB, userID, firmaID string) (*models.Worker, error) {
	var worker models.Worker
	err := db.WithContext(ctx).
		Where(`"userID" = ? AND "firmaID" = ?`, userID, firmaID).
		Take(&worker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve worker: %w", err)
	}
	return &worker, nil
}

// clientForUser resolves the client record linked to userID in firmaID.
func clientForUser(ctx context.Context, db *gorm.DB, userID, firmaID string) (*models.Client, error) {
	var client models.Client
	err := db.WithContext(ctx).
		Where(`"userID" = ? AND "firmaID" = ?`, userID, firmaID).
		Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	return &client, nil
}

// requireInTenant checks that every id of model belongs to firmaID.
func requireInTenant(tx *gorm.DB, model any, idColumn, firmaID, field string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	err := tx.Model(model).
		Where(fmt.Sprintf(`%q IN ? AND "firmaID" = ?`, idColumn), ids, firmaID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if int(count) != len(ids) {
		return newValidationError(field, "references records outside this firma")
	}
	return nil
}

// uniqueIDs drops empty and repeated IDs, keeping the first occurrence.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
