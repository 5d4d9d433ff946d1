package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"scheduling-server/utils"
)

// updateRow applies updates to the tenant's row idColumn = id and reloads it
// into dest.
func updateRow(ctx context.Context, db *gorm.DB, dest any, idColumn, id, firmaID string, updates map[string]any) error {
	if len(updates) == 0 {
		return newValidationError("body", "no fields to update")
	}
	where := fmt.Sprintf(`%q = ? AND "firmaID" = ?`, idColumn)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(dest).Where(where, id, firmaID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("update %s: %w", idColumn, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where(where, id, firmaID).Take(dest).Error; err != nil {
			return fmt.Errorf("reload %s: %w", idColumn, err)
		}
		return nil
	})
}

// deleteRow deletes the tenant's row idColumn = id.
func deleteRow(tx *gorm.DB, model any, idColumn, id, firmaID string) error {
	result := tx.Where(fmt.Sprintf(`%q = ? AND "firmaID" = ?`, idColumn), id, firmaID).Delete(model)
	if result.Error != nil {
		return fmt.Errorf("delete %s: %w", idColumn, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// newID returns requested when the caller supplied one, otherwise a fresh
// random ID.
func newID(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	return utils.GenerateID()
}
