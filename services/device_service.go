package services

import (
	"context"
	"fmt"

	"scheduling-server/models"
	"scheduling-server/realtime"
)

var deviceFields = map[string]field{
	"pwaVersion":               {"pwaVersion", nullableStringField},
	"osVersion":                {"osVersion", nullableStringField},
	"batteryLevel":             {"batteryLevel", nullableFloatField},
	"batteryStatus":            {"batteryStatus", nullableStringField},
	"geolocationEnabled":       {"geolocationEnabled", boolField},
	"pushNotificationsEnabled": {"pushNotificationsEnabled", boolField},
}

// DeviceService records the telemetry a signed-in device reports about
// itself. pushNotificationsEnabled is the preference push delivery honours.
type DeviceService struct {
	*Deps
}

func NewDeviceService(deps *Deps) *DeviceService {
	return &DeviceService{Deps: deps}
}

// Sync stores the reported fields on the actor's user row. Directors see
// the change through worker_updated since the worker list carries it.
func (s *DeviceService) Sync(ctx context.Context, actor *models.User, patch Patch) error {
	updates, err := patch.updates(deviceFields)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	err = s.DB.WithContext(ctx).Model(&models.User{}).
		Where(`"userID" = ?`, actor.UserID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("sync device: %w", err)
	}

	if firmaID := actor.Tenant(); firmaID != "" {
		s.publishEntity(firmaID, realtime.WorkerUpdated)
	}
	return nil
}

// TenantMember reports whether userID belongs to firmaID.
func (s *DeviceService) TenantMember(ctx context.Context, firmaID, userID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where(`"userID" = ? AND "firmaID" = ?`, userID, firmaID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check tenant member: %w", err)
	}
	return count > 0, nil
}
