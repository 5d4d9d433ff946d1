package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduling-server/models"
	"scheduling-server/realtime"
)

var addressFields = map[string]field{
	"country":     {"country", nullableStringField},
	"street":      {"street", nullableStringField},
	"postalCode":  {"postalCode", nullableStringField},
	"city":        {"city", nullableStringField},
	"houseNumber": {"houseNumber", nullableStringField},
	"apartment":   {"apartment", nullableStringField},
	"district":    {"district", nullableStringField},
	"latitude":    {"latitude", nullableFloatField},
	"longitude":   {"longitude", nullableFloatField},
}

var contactFields = map[string]field{
	"name":    {"name", stringField},
	"surname": {"surname", nullableStringField},
	"email":   {"email", nullableStringField},
	"phone":   {"phone", nullableStringField},
	"phone2":  {"phone2", nullableStringField},
	"status":  {"status", intField},
}

var clientFields = mergeFields(contactFields, addressFields, map[string]field{
	"groupeID": {"groupeID", nullableStringField},
})

func mergeFields(sets ...map[string]field) map[string]field {
	out := make(map[string]field)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// ContactInput is the person part shared by client and worker creates.
type ContactInput struct {
	UserID  *string `json:"userID"`
	Name    string  `json:"name"`
	Surname *string `json:"surname"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Phone2  *string `json:"phone2"`
	Status  int     `json:"status"`
	models.PostalAddress
}

func (in ContactInput) validate() error {
	if in.Name == "" {
		return newValidationError("name", "is required")
	}
	return nil
}

type ClientInput struct {
	ContactInput
	GroupeID *string `json:"groupeID"`
}

type ClientService struct {
	*Deps
}

func NewClientService(deps *Deps) *ClientService {
	return &ClientService{Deps: deps}
}

func (s *ClientService) Create(ctx context.Context, actor *models.User, in ClientInput) (*models.Client, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	id, err := newID("")
	if err != nil {
		return nil, err
	}

	client := models.Client{
		ClientID:      id,
		UserID:        emptyToNil(in.UserID),
		FirmaID:       actor.Tenant(),
		Name:          in.Name,
		Surname:       in.Surname,
		Email:         in.Email,
		Phone:         in.Phone,
		Phone2:        in.Phone2,
		Status:        in.Status,
		GroupeID:      emptyToNil(in.GroupeID),
		PostalAddress: in.PostalAddress,
	}
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(&client).Error; err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}

	s.publishEntity(client.FirmaID, realtime.ClientCreated)
	return &client, nil
}

func (s *ClientService) Update(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Client, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	updates, err := patch.updates(clientFields)
	if err != nil {
		return nil, err
	}

	var client models.Client
	if err := updateRow(ctx, s.DB, &client, "clientID", id, actor.Tenant(), updates); err != nil {
		return nil, err
	}

	s.publishEntity(client.FirmaID, realtime.ClientUpdated)
	return &client, nil
}

// Delete refuses to remove a client that still has appointments.
func (s *ClientService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointments int64
		if err := tx.Model(&models.Appointment{}).
			Where(`"clientID" = ? AND "firmaID" = ?`, id, firmaID).
			Count(&appointments).Error; err != nil {
			return fmt.Errorf("count client appointments: %w", err)
		}
		if appointments > 0 {
			return fmt.Errorf("client has %d appointments: %w", appointments, ErrConflict)
		}
		return deleteRow(tx, &models.Client{}, "clientID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publishEntity(firmaID, realtime.ClientDeleted)
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
