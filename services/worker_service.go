package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduling-server/models"
	"scheduling-server/realtime"
)

var workerFields = mergeFields(contactFields, addressFields, map[string]field{
	"teamId":   {"teamId", nullableStringField},
	"isAdress": {"isAdress", boolField},
})

type WorkerInput struct {
	ContactInput
	WorkerID string  `json:"workerID"`
	TeamID   *string `json:"teamId"`
	IsAdress bool    `json:"isAdress"`
}

type WorkerService struct {
	*Deps
}

func NewWorkerService(deps *Deps) *WorkerService {
	return &WorkerService{Deps: deps}
}

func (s *WorkerService) Create(ctx context.Context, actor *models.User, in WorkerInput) (*models.Worker, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	id, err := newID(in.WorkerID)
	if err != nil {
		return nil, err
	}

	worker := models.Worker{
		WorkerID:      id,
		UserID:        emptyToNil(in.UserID),
		FirmaID:       actor.Tenant(),
		Name:          in.Name,
		Surname:       in.Surname,
		Email:         in.Email,
		Phone:         in.Phone,
		Phone2:        in.Phone2,
		TeamID:        emptyToNil(in.TeamID),
		IsAdress:      in.IsAdress,
		Status:        in.Status,
		PostalAddress: in.PostalAddress,
	}
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(&worker).Error; err != nil {
		return nil, fmt.Errorf("insert worker: %w", err)
	}

	s.publishEntity(worker.FirmaID, realtime.WorkerCreated)
	return &worker, nil
}

func (s *WorkerService) Update(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Worker, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	updates, err := patch.updates(workerFields)
	if err != nil {
		return nil, err
	}
	if team, ok := updates["teamId"].(string); ok && team == "" {
		updates["teamId"] = nil
	}

	var worker models.Worker
	if err := updateRow(ctx, s.DB, &worker, "workerID", id, actor.Tenant(), updates); err != nil {
		return nil, err
	}

	s.publishEntity(worker.FirmaID, realtime.WorkerUpdated)
	return &worker, nil
}

// Delete removes the worker. Their reports go with the cascade, so photo
// URLs are collected first and cleaned up after the commit.
func (s *WorkerService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	var photoURLs []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if photoURLs, err = reportPhotoURLs(tx, `r."workerId" = ? AND r."firmaID" = ?`, id, firmaID); err != nil {
			return err
		}
		return deleteRow(tx, &models.Worker{}, "workerID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publishEntity(firmaID, realtime.WorkerDeleted)
	s.cleanupPhotos(photoURLs)
	return nil
}
