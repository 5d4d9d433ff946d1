package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"scheduling-server/models"
	"scheduling-server/realtime"
)

var (
	teamFields   = map[string]field{"teamName": {"teamName", stringField}}
	groupeFields = map[string]field{"groupeName": {"groupeName", stringField}}
)

type TeamInput struct {
	TeamID   string `json:"teamID"`
	TeamName string `json:"teamName"`
}

type GroupeInput struct {
	GroupeID   string `json:"groupeID"`
	GroupeName string `json:"groupeName"`
}

// TeamService manages worker teams and client groupes. Both are plain
// named buckets owned by a firma.
type TeamService struct {
	*Deps
}

func NewTeamService(deps *Deps) *TeamService {
	return &TeamService{Deps: deps}
}

func (s *TeamService) CreateTeam(ctx context.Context, actor *models.User, in TeamInput) (*models.Team, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	if in.TeamName == "" {
		return nil, newValidationError("teamName", "is required")
	}
	id, err := newID(in.TeamID)
	if err != nil {
		return nil, err
	}

	team := models.Team{TeamID: id, FirmaID: actor.Tenant(), TeamName: in.TeamName}
	if err := s.DB.WithContext(ctx).Create(&team).Error; err != nil {
		return nil, fmt.Errorf("insert team: %w", err)
	}

	s.publishEntity(team.FirmaID, realtime.TeamCreated)
	return &team, nil
}

func (s *TeamService) UpdateTeam(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Team, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	updates, err := patch.updates(teamFields)
	if err != nil {
		return nil, err
	}

	var team models.Team
	if err := updateRow(ctx, s.DB, &team, "teamID", id, actor.Tenant(), updates); err != nil {
		return nil, err
	}

	s.publishEntity(team.FirmaID, realtime.TeamUpdated)
	return &team, nil
}

// DeleteTeam detaches the team's workers before removing it.
func (s *TeamService) DeleteTeam(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Worker{}).
			Where(`"teamId" = ? AND "firmaID" = ?`, id, firmaID).
			Update("teamId", nil).Error; err != nil {
			return fmt.Errorf("detach team workers: %w", err)
		}
		return deleteRow(tx, &models.Team{}, "teamID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publishEntity(firmaID, realtime.TeamDeleted)
	return nil
}

func (s *TeamService) CreateGroupe(ctx context.Context, actor *models.User, in GroupeInput) (*models.Groupe, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	if in.GroupeName == "" {
		return nil, newValidationError("groupeName", "is required")
	}
	id, err := newID(in.GroupeID)
	if err != nil {
		return nil, err
	}

	groupe := models.Groupe{GroupeID: id, FirmaID: actor.Tenant(), GroupeName: in.GroupeName}
	if err := s.DB.WithContext(ctx).Create(&groupe).Error; err != nil {
		return nil, fmt.Errorf("insert groupe: %w", err)
	}

	s.publishEntity(groupe.FirmaID, realtime.GroupeCreated)
	return &groupe, nil
}

func (s *TeamService) UpdateGroupe(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Groupe, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	updates, err := patch.updates(groupeFields)
	if err != nil {
		return nil, err
	}

	var groupe models.Groupe
	if err := updateRow(ctx, s.DB, &groupe, "groupeID", id, actor.Tenant(), updates); err != nil {
		return nil, err
	}

	s.publishEntity(groupe.FirmaID, realtime.GroupeUpdated)
	return &groupe, nil
}

// DeleteGroupe detaches the groupe's clients before removing it.
func (s *TeamService) DeleteGroupe(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Client{}).
			Where(`"groupeID" = ? AND "firmaID" = ?`, id, firmaID).
			Update("groupeID", nil).Error; err != nil {
			return fmt.Errorf("detach groupe clients: %w", err)
		}
		return deleteRow(tx, &models.Groupe{}, "groupeID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publishEntity(firmaID, realtime.GroupeDeleted)
	return nil
}
