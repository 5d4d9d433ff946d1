package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduling-server/models"
	"scheduling-server/push"
	"scheduling-server/realtime"
	"scheduling-server/utils"
)

var appointmentFields = map[string]field{
	"date":        {"date", timeField},
	"isFixedTime": {"isFixedTime", boolField},
	"startTime":   {"startTime", timeField},
	"endTime":     {"endTime", timeField},
	"duration":    {"duration", intField},
	"fahrzeit":    {"fahrzeit", intField},
	"clientID":    {"clientID", stringField},
	"isOpen":      {"isOpen", boolField},
	"openedAt":    {"openedAt", nullableTimeField},
	"closedAt":    {"closedAt", nullableTimeField},
	"latitude":    {"latitude", nullableFloatField},
	"longitude":   {"longitude", nullableFloatField},
}

// workerAppointmentFields are the only fields a worker may set, on
// appointments they are assigned to.
var workerAppointmentFields = map[string]field{
	"isOpen":   appointmentFields["isOpen"],
	"openedAt": appointmentFields["openedAt"],
	"closedAt": appointmentFields["closedAt"],
}

// AppointmentInput is the body of an appointment create.
type AppointmentInput struct {
	ClientID    string   `json:"clientID"`
	WorkerIDs   []string `json:"workerIds"`
	ServiceIDs  []string `json:"serviceIds"`
	Date        string   `json:"date"`
	IsFixedTime bool     `json:"isFixedTime"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Duration    int      `json:"duration"`
	Fahrzeit    int      `json:"fahrzeit"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type appointmentTimes struct {
	date, start, end time.Time
}

func (in AppointmentInput) validate() (appointmentTimes, error) {
	errs := map[string]string{}
	var times appointmentTimes
	var err error

	if in.ClientID == "" {
		errs["clientID"] = "is required"
	}
	if times.date, err = ParseTimestamp(in.Date); err != nil {
		errs["date"] = "must be a timestamp"
	}
	if times.start, err = ParseTimestamp(in.StartTime); err != nil {
		errs["startTime"] = "must be a timestamp"
	}
	if times.end, err = ParseTimestamp(in.EndTime); err != nil {
		errs["endTime"] = "must be a timestamp"
	}
	if in.Duration < 0 {
		errs["duration"] = "must not be negative"
	}
	if !coordinatesValid(in.Latitude, in.Longitude) {
		errs["latitude"] = "coordinates out of range"
	}
	if len(errs) > 0 {
		return times, &ValidationError{FieldErrors: errs}
	}
	return times, nil
}

// AppointmentService is the transactional write path for appointments.
type AppointmentService struct {
	*Deps
}

func NewAppointmentService(deps *Deps) *AppointmentService {
	return &AppointmentService{Deps: deps}
}

// Create inserts the appointment and its junction rows in one transaction
// and returns the committed record.
func (s *AppointmentService) Create(ctx context.Context, actor *models.User, in AppointmentInput) (*models.AppointmentRecord, error) {
	if !actor.IsDirector() {
		return nil, ErrForbidden
	}
	times, err := in.validate()
	if err != nil {
		return nil, err
	}

	id, err := utils.GenerateID()
	if err != nil {
		return nil, err
	}

	firmaID := actor.Tenant()
	workerIDs := uniqueIDs(in.WorkerIDs)
	serviceIDs := uniqueIDs(in.ServiceIDs)

	appointment := models.Appointment{
		AppointmentID: id,
		FirmaID:       firmaID,
		UserID:        actor.UserID,
		ClientID:      in.ClientID,
		WorkerID:      firstOrEmpty(workerIDs),
		Date:          times.date,
		IsFixedTime:   in.IsFixedTime,
		StartTime:     times.start,
		EndTime:       times.end,
		Duration:      in.Duration,
		Fahrzeit:      in.Fahrzeit,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
	}

	var record *models.AppointmentRecord
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireInTenant(tx, &models.Client{}, "clientID", firmaID, "clientID", []string{in.ClientID}); err != nil {
			return err
		}
		if err := requireInTenant(tx, &models.Worker{}, "workerID", firmaID, "workerIds", workerIDs); err != nil {
			return err
		}
		if err := requireInTenant(tx, &models.Service{}, "serviceID", firmaID, "serviceIds", serviceIDs); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&appointment).Error; err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		if err := insertAppointmentWorkers(tx, id, workerIDs); err != nil {
			return err
		}
		if err := insertAppointmentServices(tx, id, serviceIDs); err != nil {
			return err
		}

		record, err = loadAppointmentRecord(tx, firmaID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(realtime.ChangeEvent{
		Type:          realtime.AppointmentCreated,
		AppointmentID: record.AppointmentID,
		WorkerIDs:     record.WorkerIDs,
		ClientID:      record.ClientID,
		IsOpen:        &record.IsOpen,
		FirmaID:       firmaID,
	})
	change := push.AppointmentChange{
		FirmaID:       firmaID,
		AppointmentID: record.AppointmentID,
		ClientID:      record.ClientID,
		WorkerIDs:     record.WorkerIDs,
	}
	s.notify("push:appointment_created", func(ctx context.Context, n AppointmentNotifier) error {
		return n.AppointmentCreated(ctx, change)
	})

	return record, nil
}

// Update applies the supplied fields. workerIds and serviceIds, when
// supplied, replace the whole junction set. Workers may only open and close
// appointments they are assigned to; any other field rejects the request.
func (s *AppointmentService) Update(ctx context.Context, actor *models.User, id string, patch Patch) (*models.AppointmentRecord, error) {
	firmaID := actor.Tenant()

	switch {
	case actor.IsDirector():
	case actor.IsWorker():
		if extra := patch.outside(workerAppointmentFields); len(extra) > 0 {
			return nil, &FieldPermissionError{Fields: extra}
		}
		if len(patch.Keys()) == 0 || (len(patch.Keys()) == 1 && patch.Has("id")) {
			return nil, newValidationError("body", "no allowed fields to update")
		}
		worker, err := workerForUser(ctx, s.DB, actor.UserID, firmaID)
		if err != nil {
			return nil, err
		}
		if worker == nil {
			return nil, ErrForbidden
		}
		assigned, err := isAssigned(ctx, s.DB, id, worker.WorkerID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	updates, err := patch.updates(appointmentFields)
	if err != nil {
		return nil, err
	}
	workerIDs, replaceWorkers, err := patch.StringList("workerIds")
	if err != nil {
		return nil, err
	}
	serviceIDs, replaceServices, err := patch.StringList("serviceIds")
	if err != nil {
		return nil, err
	}
	workerIDs = uniqueIDs(workerIDs)
	serviceIDs = uniqueIDs(serviceIDs)
	if replaceWorkers && len(workerIDs) > 0 {
		updates["workerId"] = workerIDs[0]
	}

	var (
		record          *models.AppointmentRecord
		previousIsOpen  bool
		previousWorkers []string
		timeChanged     bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Appointment
		err := tx.Select("appointmentID", "isOpen", "date", "startTime").
			Where(`"appointmentID" = ? AND "firmaID" = ?`, id, firmaID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		previousIsOpen = existing.IsOpen
		timeChanged = scheduleChanged(existing, updates)

		if clientID, ok := updates["clientID"].(string); ok {
			if err := requireInTenant(tx, &models.Client{}, "clientID", firmaID, "clientID", []string{clientID}); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Appointment{}).
				Where(`"appointmentID" = ? AND "firmaID" = ?`, id, firmaID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("update appointment: %w", err)
			}
		}

		if replaceWorkers {
			if err := requireInTenant(tx, &models.Worker{}, "workerID", firmaID, "workerIds", workerIDs); err != nil {
				return err
			}
			// The previous set feeds the push diff; the replacement below
			// does not depend on it.
			if previousWorkers, err = appointmentWorkerIDs(tx, id); err != nil {
				return err
			}
			if err := tx.Where(`"appointmentID" = ?`, id).Delete(&models.AppointmentWorker{}).Error; err != nil {
				return fmt.Errorf("clear appointment workers: %w", err)
			}
			if err := insertAppointmentWorkers(tx, id, workerIDs); err != nil {
				return err
			}
		}

		if replaceServices {
			if err := requireInTenant(tx, &models.Service{}, "serviceID", firmaID, "serviceIds", serviceIDs); err != nil {
				return err
			}
			if err := tx.Where(`"appointmentID" = ?`, id).Delete(&models.AppointmentService{}).Error; err != nil {
				return fmt.Errorf("clear appointment services: %w", err)
			}
			if err := insertAppointmentServices(tx, id, serviceIDs); err != nil {
				return err
			}
		}

		record, err = loadAppointmentRecord(tx, firmaID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(realtime.ChangeEvent{
		Type:          realtime.AppointmentUpdated,
		AppointmentID: record.AppointmentID,
		WorkerIDs:     record.WorkerIDs,
		ClientID:      record.ClientID,
		IsOpen:        &record.IsOpen,
		OpenedAt:      realtime.NewNullableTime(record.OpenedAt),
		ClosedAt:      realtime.NewNullableTime(record.ClosedAt),
		FirmaID:       firmaID,
	})

	change := push.AppointmentChange{
		FirmaID:        firmaID,
		AppointmentID:  record.AppointmentID,
		ClientID:       record.ClientID,
		WorkerIDs:      record.WorkerIDs,
		IsOpen:         record.IsOpen,
		PreviousIsOpen: previousIsOpen,
		TimeChanged:    timeChanged,
	}
	if replaceWorkers {
		change.PreviousWorkerIDs = previousWorkers
		if change.PreviousWorkerIDs == nil {
			change.PreviousWorkerIDs = []string{}
		}
	}
	s.notify("push:appointment_updated", func(ctx context.Context, n AppointmentNotifier) error {
		return n.AppointmentUpdated(ctx, change)
	})

	return record, nil
}

// Delete removes the appointment. Workers, client and report photo URLs are
// read first because the cascade removes them with the row.
func (s *AppointmentService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsDirector() {
		return ErrForbidden
	}
	firmaID := actor.Tenant()

	var (
		existing  models.Appointment
		workerIDs []string
		photoURLs []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Select("appointmentID", "clientID").
			Where(`"appointmentID" = ? AND "firmaID" = ?`, id, firmaID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}

		if workerIDs, err = appointmentWorkerIDs(tx, id); err != nil {
			return err
		}
		if photoURLs, err = reportPhotoURLs(tx, `r."appointmentId" = ?`, id); err != nil {
			return err
		}

		result := tx.Where(`"appointmentID" = ? AND "firmaID" = ?`, id, firmaID).Delete(&models.Appointment{})
		if result.Error != nil {
			return fmt.Errorf("delete appointment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(realtime.ChangeEvent{
		Type:          realtime.AppointmentDeleted,
		AppointmentID: id,
		WorkerIDs:     workerIDs,
		ClientID:      existing.ClientID,
		FirmaID:       firmaID,
	})
	change := push.AppointmentChange{
		FirmaID:       firmaID,
		AppointmentID: id,
		ClientID:      existing.ClientID,
		WorkerIDs:     workerIDs,
	}
	s.notify("push:appointment_deleted", func(ctx context.Context, n AppointmentNotifier) error {
		return n.AppointmentDeleted(ctx, change)
	})
	s.cleanupPhotos(photoURLs)

	return nil
}

// scheduleChanged reports whether the update moves the appointment to
// another calendar day or start minute.
func scheduleChanged(existing models.Appointment, updates map[string]any) bool {
	if date, ok := updates["date"].(time.Time); ok {
		if date.In(time.Local).Format("2006-01-02") != existing.Date.In(time.Local).Format("2006-01-02") {
			return true
		}
	}
	if start, ok := updates["startTime"].(time.Time); ok {
		if start.In(time.Local).Format("15:04") != existing.StartTime.In(time.Local).Format("15:04") {
			return true
		}
	}
	return false
}

func isAssigned(ctx context.Context, db *gorm.DB, appointmentID, workerID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.AppointmentWorker{}).
		Where(`"appointmentID" = ? AND "workerID" = ?`, appointmentID, workerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return count > 0, nil
}

func insertAppointmentWorkers(tx *gorm.DB, appointmentID string, workerIDs []string) error {
	if len(workerIDs) == 0 {
		return nil
	}
	rows := make([]models.AppointmentWorker, 0, len(workerIDs))
	for _, wid := range workerIDs {
		rows = append(rows, models.AppointmentWorker{AppointmentID: appointmentID, WorkerID: wid})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert appointment workers: %w", err)
	}
	return nil
}

func insertAppointmentServices(tx *gorm.DB, appointmentID string, serviceIDs []string) error {
	if len(serviceIDs) == 0 {
		return nil
	}
	rows := make([]models.AppointmentService, 0, len(serviceIDs))
	for _, sid := range serviceIDs {
		rows = append(rows, models.AppointmentService{AppointmentID: appointmentID, ServiceID: sid})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert appointment services: %w", err)
	}
	return nil
}

func appointmentWorkerIDs(tx *gorm.DB, appointmentID string) ([]string, error) {
	var ids []string
	err := tx.Model(&models.AppointmentWorker{}).
		Where(`"appointmentID" = ?`, appointmentID).
		Order(`"workerID"`).
		Pluck("workerID", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load appointment workers: %w", err)
	}
	return ids, nil
}

func appointmentServiceIDs(tx *gorm.DB, appointmentID string) ([]string, error) {
	var ids []string
	err := tx.Model(&models.AppointmentService{}).
		Where(`"appointmentID" = ?`, appointmentID).
		Order(`"serviceID"`).
		Pluck("serviceID", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load appointment services: %w", err)
	}
	return ids, nil
}

// loadAppointmentRecord re-reads the row and its junction sets inside tx so
// callers see committed state, not the request echo.
func loadAppointmentRecord(tx *gorm.DB, firmaID, id string) (*models.AppointmentRecord, error) {
	var appointment models.Appointment
	err := tx.Where(`"appointmentID" = ? AND "firmaID" = ?`, id, firmaID).Take(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}

	workerIDs, err := appointmentWorkerIDs(tx, id)
	if err != nil {
		return nil, err
	}
	serviceIDs, err := appointmentServiceIDs(tx, id)
	if err != nil {
		return nil, err
	}
	if workerIDs == nil {
		workerIDs = []string{}
	}
	if serviceIDs == nil {
		serviceIDs = []string{}
	}

	return &models.AppointmentRecord{
		Appointment: appointment,
		WorkerIDs:   workerIDs,
		ServiceIDs:  serviceIDs,
	}, nil
}

// reportPhotoURLs lists photo URLs of the reports matching where.
func reportPhotoURLs(tx *gorm.DB, where string, args ...any) ([]string, error) {
	var urls []string
	err := tx.Table("report_photos AS rp").
		Joins(`JOIN reports r ON rp."reportID" = r."reportID"`).
		Where(where, args...).
		Where(`rp."url" <> ''`).
		Pluck(`rp."url"`, &urls).Error
	if err != nil {
		return nil, fmt.Errorf("load report photos: %w", err)
	}
	return urls, nil
}

// coordinatesValid reports false only for a complete pair outside the valid
// latitude/longitude range.
func coordinatesValid(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return true
	}
	return utils.IsLocationValid(*lat, *lng)
}
