package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"scheduling-server/models"
	"scheduling-server/realtime"
)

var serviceFields = map[string]field{
	"name":        {"name", stringField},
	"description": {"description", nullableStringField},
	"duration":    {"duration", intField},
	"price":       {"price", nullableFloatField},
	"parentId":    {"parentId", nullableStringField},
	"isGroup":     {"isGroup", boolField},
	"order":       {"order", intField},
}

type ServiceInput struct {
	ServiceID   string   `json:"serviceID"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Duration    int      `json:"duration"`
	Price       *float64 `json:"price"`
	ParentID    *string  `json:"parentId"`
	IsGroup     bool     `json:"isGroup"`
	Order       int      `json:"order"`
}

// CatalogService manages the firma's service catalog.
type CatalogService struct {
	*Deps
}

func NewCatalogService(deps *Deps) *CatalogService {
	return &CatalogService{Deps: deps}
}

func (s *CatalogService) Create(ctx context.Context, actor *models.User, in ServiceInput) (*models.Service, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	if in.Name == "" {
		return nil, newValidationError("name", "is required")
	}
	if in.Duration < 0 {
		return nil, newValidationError("duration", "must not be negative")
	}
	id, err := newID(in.ServiceID)
	if err != nil {
		return nil, err
	}
	firmaID := actor.Tenant()
	parentID := emptyToNil(in.ParentID)

	service := models.Service{
		ServiceID:   id,
		FirmaID:     firmaID,
		Name:        in.Name,
		Description: in.Description,
		Duration:    in.Duration,
		Price:       in.Price,
		ParentID:    parentID,
		IsGroup:     in.IsGroup,
		Order:       in.Order,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			if err := requireInTenant(tx, &models.Service{}, "serviceID", firmaID, "parentId", []string{*parentID}); err != nil {
				return err
			}
		}
		if err := tx.Create(&service).Error; err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEntity(firmaID, realtime.ServiceCreated)
	return &service, nil
}

func (s *CatalogService) Update(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Service, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	updates, err := patch.updates(serviceFields)
	if err != nil {
		return nil, err
	}
	if parent, ok := updates["parentId"].(string); ok && parent == id {
		return nil, newValidationError("parentId", "must not reference the service itself")
	}

	var service models.Service
	if err := updateRow(ctx, s.DB, &service, "serviceID", id, actor.Tenant(), updates); err != nil {
		return nil, err
	}

	s.publishEntity(service.FirmaID, realtime.ServiceUpdated)
	return &service, nil
}

// Delete lifts the service's children to the top level before removing it.
// Junction rows go with the cascade.
func (s *CatalogService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Service{}).
			Where(`"parentId" = ? AND "firmaID" = ?`, id, firmaID).
			Update("parentId", nil).Error; err != nil {
			return fmt.Errorf("detach child services: %w", err)
		}
		return deleteRow(tx, &models.Service{}, "serviceID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publishEntity(firmaID, realtime.ServiceDeleted)
	return nil
}
