package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduling-server/models"
	"scheduling-server/realtime"
	"scheduling-server/utils"
)

var reportFields = map[string]field{
	"notes":                      {"notes", nullableStringField},
	"openLatitude":               {"openLatitude", nullableFloatField},
	"openLongitude":              {"openLongitude", nullableFloatField},
	"openAddress":                {"openAddress", nullableStringField},
	"openDistanceToAppointment":  {"openDistanceToAppointment", nullableFloatField},
	"closeLatitude":              {"closeLatitude", nullableFloatField},
	"closeLongitude":             {"closeLongitude", nullableFloatField},
	"closeAddress":               {"closeAddress", nullableStringField},
	"closeDistanceToAppointment": {"closeDistanceToAppointment", nullableFloatField},
}

type PhotoInput struct {
	URL  string `json:"url"`
	Note string `json:"note"`
}

// ReportInput opens a report against an appointment. OpenSession stamps
// openAt with the database clock.
type ReportInput struct {
	ReportID                  string       `json:"reportID"`
	WorkerID                  string       `json:"workerId"`
	AppointmentID             string       `json:"appointmentId"`
	Notes                     *string      `json:"notes"`
	OpenSession               bool         `json:"openSession"`
	OpenLatitude              *float64     `json:"openLatitude"`
	OpenLongitude             *float64     `json:"openLongitude"`
	OpenAddress               *string      `json:"openAddress"`
	OpenDistanceToAppointment *float64     `json:"openDistanceToAppointment"`
	Photos                    []PhotoInput `json:"photos"`
}

type ReportService struct {
	*Deps
}

func NewReportService(deps *Deps) *ReportService {
	return &ReportService{Deps: deps}
}

// reportAuthor resolves the worker a report is written as. Workers always
// write as themselves.
func (s *ReportService) reportAuthor(ctx context.Context, actor *models.User, requested string) (string, error) {
	switch {
	case actor.IsDirector():
		if requested == "" {
			return "", newValidationError("workerId", "is required")
		}
		return requested, nil
	case actor.IsWorker():
		worker, err := workerForUser(ctx, s.DB, actor.UserID, actor.Tenant())
		if err != nil {
			return "", err
		}
		if worker == nil {
			return "", ErrForbidden
		}
		return worker.WorkerID, nil
	default:
		return "", ErrForbidden
	}
}

func (s *ReportService) Create(ctx context.Context, actor *models.User, in ReportInput) (*models.Report, error) {
	if in.AppointmentID == "" {
		return nil, newValidationError("appointmentId", "is required")
	}
	if !coordinatesValid(in.OpenLatitude, in.OpenLongitude) {
		return nil, newValidationError("openLatitude", "coordinates out of range")
	}
	for _, photo := range in.Photos {
		if photo.URL == "" {
			return nil, newValidationError("photos", "every photo needs a url")
		}
	}
	workerID, err := s.reportAuthor(ctx, actor, in.WorkerID)
	if err != nil {
		return nil, err
	}
	id, err := newID(in.ReportID)
	if err != nil {
		return nil, err
	}
	firmaID := actor.Tenant()

	var report models.Report
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		err := tx.Where(`"appointmentID" = ? AND "firmaID" = ?`, in.AppointmentID, firmaID).Take(&appointment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("appointmentId", "references records outside this firma")
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if err := requireInTenant(tx, &models.Worker{}, "workerID", firmaID, "workerId", []string{workerID}); err != nil {
			return err
		}

		distance := in.OpenDistanceToAppointment
		if distance == nil {
			distance = utils.DistanceBetween(in.OpenLatitude, in.OpenLongitude, appointment.Latitude, appointment.Longitude)
		}
		now := gorm.Expr("NOW()")
		row := map[string]any{
			"reportID":                  id,
			"firmaID":                   firmaID,
			"workerId":                  workerID,
			"appointmentId":             in.AppointmentID,
			"notes":                     in.Notes,
			"openLatitude":              in.OpenLatitude,
			"openLongitude":             in.OpenLongitude,
			"openAddress":               in.OpenAddress,
			"openDistanceToAppointment": distance,
			"date":                      now,
			"createdAt":                 now,
		}
		if in.OpenSession {
			row["openAt"] = now
		}
		if err := tx.Model(&models.Report{}).Create(row).Error; err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		for _, photo := range in.Photos {
			photoID, err := utils.GenerateID()
			if err != nil {
				return err
			}
			p := models.ReportPhoto{PhotoID: photoID, ReportID: id, URL: photo.URL, Note: photo.Note}
			if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
				return fmt.Errorf("insert report photo: %w", err)
			}
		}

		return loadReport(tx, firmaID, id, &report)
	})
	if err != nil {
		return nil, err
	}

	s.publish(realtime.ChangeEvent{Type: realtime.ReportCreated, FirmaID: firmaID, AppointmentID: report.AppointmentID})
	return &report, nil
}

// Update edits a report. closeSession stamps closeAt with the database
// clock; missing close distances are derived from the appointment location.
func (s *ReportService) Update(ctx context.Context, actor *models.User, id string, patch Patch) (*models.Report, error) {
	updates, err := patch.updates(reportFields)
	if err != nil {
		return nil, err
	}
	closeSession, _, err := patch.Bool("closeSession")
	if err != nil {
		return nil, err
	}
	if closeSession {
		updates["closeAt"] = gorm.Expr("NOW()")
	}
	if len(updates) == 0 {
		return nil, newValidationError("body", "no fields to update")
	}
	firmaID := actor.Tenant()

	var report models.Report
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Report
		if err := loadReport(tx, firmaID, id, &existing); err != nil {
			return err
		}
		if err := canEditReport(ctx, tx, actor, existing); err != nil {
			return err
		}

		if _, ok := updates["closeDistanceToAppointment"]; !ok {
			lat, latOK := updates["closeLatitude"].(float64)
			lng, lngOK := updates["closeLongitude"].(float64)
			if latOK && lngOK {
				d, err := distanceToAppointment(tx, existing.AppointmentID, &lat, &lng)
				if err != nil {
					return err
				}
				if d != nil {
					updates["closeDistanceToAppointment"] = *d
				}
			}
		}

		if err := tx.Model(&models.Report{}).
			Where(`"reportID" = ? AND "firmaID" = ?`, id, firmaID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		return loadReport(tx, firmaID, id, &report)
	})
	if err != nil {
		return nil, err
	}

	s.publish(realtime.ChangeEvent{Type: realtime.ReportUpdated, FirmaID: firmaID, AppointmentID: report.AppointmentID})
	return &report, nil
}

func (s *ReportService) Delete(ctx context.Context, actor *models.User, id string) error {
	firmaID := actor.Tenant()

	var (
		appointmentID string
		photoURLs     []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Report
		if err := loadReport(tx, firmaID, id, &existing); err != nil {
			return err
		}
		if err := canEditReport(ctx, tx, actor, existing); err != nil {
			return err
		}
		appointmentID = existing.AppointmentID
		for _, photo := range existing.Photos {
			if photo.URL != "" {
				photoURLs = append(photoURLs, photo.URL)
			}
		}
		return deleteRow(tx, &models.Report{}, "reportID", id, firmaID)
	})
	if err != nil {
		return err
	}

	s.publish(realtime.ChangeEvent{Type: realtime.ReportDeleted, FirmaID: firmaID, AppointmentID: appointmentID})
	s.cleanupPhotos(photoURLs)
	return nil
}

// canEditReport lets directors edit any report and workers their own.
func canEditReport(ctx context.Context, tx *gorm.DB, actor *models.User, report models.Report) error {
	if actor.IsDirector() {
		return nil
	}
	if !actor.IsWorker() {
		return ErrForbidden
	}
	worker, err := workerForUser(ctx, tx, actor.UserID, actor.Tenant())
	if err != nil {
		return err
	}
	if worker == nil || worker.WorkerID != report.WorkerID {
		return ErrForbidden
	}
	return nil
}

func loadReport(tx *gorm.DB, firmaID, id string, dest *models.Report) error {
	err := tx.Preload("Photos").
		Where(`"reportID" = ? AND "firmaID" = ?`, id, firmaID).
		Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	return nil
}

// distanceToAppointment measures from (lat, lng) to the appointment's
// location, or returns nil when the appointment has none.
func distanceToAppointment(tx *gorm.DB, appointmentID string, lat, lng *float64) (*float64, error) {
	var appointment models.Appointment
	err := tx.Select("latitude", "longitude").
		Where(`"appointmentID" = ?`, appointmentID).
		Take(&appointment).Error
	if err != nil {
		return nil, fmt.Errorf("load appointment location: %w", err)
	}
	return utils.DistanceBetween(lat, lng, appointment.Latitude, appointment.Longitude), nil
}
