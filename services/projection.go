package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"scheduling-server/models"
)

// Viewer is the scope a user reads the tenant through. Worker and client
// roles only see their own appointments; without a linked record they see
// none.
type Viewer struct {
	Role     models.UserStatus
	WorkerID *string
	ClientID *string
}

// Sees reports whether an appointment with the given client and workers is
// visible to v.
func (v Viewer) Sees(clientID string, workerIDs []string) bool {
	switch v.Role {
	case models.StatusWorker:
		if v.WorkerID == nil {
			return false
		}
		for _, id := range workerIDs {
			if id == *v.WorkerID {
				return true
			}
		}
		return false
	case models.StatusClient:
		return v.ClientID != nil && *v.ClientID == clientID
	default:
		return true
	}
}

// FilterAppointments keeps the appointments v may see, in order.
func FilterAppointments(v Viewer, appointments []models.AppointmentResponse) []models.AppointmentResponse {
	out := make([]models.AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		if v.Sees(a.ClientID, a.WorkerIDs) {
			out = append(out, a)
		}
	}
	return out
}

// FilterReports keeps reports that belong to a visible appointment. Directors
// see every report.
func FilterReports(v Viewer, reports []models.ReportResponse, visible []models.AppointmentResponse) []models.ReportResponse {
	if v.Role != models.StatusWorker && v.Role != models.StatusClient {
		return reports
	}
	ids := make(map[string]struct{}, len(visible))
	for _, a := range visible {
		ids[a.ID] = struct{}{}
	}
	out := make([]models.ReportResponse, 0, len(reports))
	for _, r := range reports {
		if _, ok := ids[r.AppointmentID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Projection reconstructs a tenant's current state for REST readers.
type Projection struct {
	db *gorm.DB
}

func NewProjection(db *gorm.DB) *Projection {
	return &Projection{db: db}
}

// ResolveViewer links the actor to their worker or client record.
func (p *Projection) ResolveViewer(ctx context.Context, actor *models.User) (Viewer, error) {
	v := Viewer{Role: actor.Role()}
	switch v.Role {
	case models.StatusWorker:
		worker, err := workerForUser(ctx, p.db, actor.UserID, actor.Tenant())
		if err != nil {
			return v, err
		}
		if worker != nil {
			v.WorkerID = &worker.WorkerID
		}
	case models.StatusClient:
		client, err := clientForUser(ctx, p.db, actor.UserID, actor.Tenant())
		if err != nil {
			return v, err
		}
		if client != nil {
			v.ClientID = &client.ClientID
		}
	}
	return v, nil
}

// Full loads the whole tenant snapshot, filtered for the actor.
func (p *Projection) Full(ctx context.Context, actor *models.User) (*models.SchedulingResponse, error) {
	firmaID := actor.Tenant()
	viewer, err := p.ResolveViewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	var (
		workers  []workerRow
		clients  []clientRow
		teams    []models.Team
		groupes  []models.Groupe
		services []models.Service
		set      appointmentSet
		reports  []models.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { workers, err = p.loadWorkerRows(gctx, firmaID); return })
	g.Go(func() (err error) { clients, err = p.loadClientRows(gctx, firmaID); return })
	g.Go(func() (err error) { teams, err = p.Teams(gctx, firmaID); return })
	g.Go(func() (err error) { groupes, err = p.Groupes(gctx, firmaID); return })
	g.Go(func() (err error) { services, err = p.loadServices(gctx, firmaID); return })
	g.Go(func() (err error) { set, err = p.loadAppointmentSet(gctx, firmaID); return })
	g.Go(func() (err error) { reports, err = p.loadReports(gctx, firmaID); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lookup := newAppointmentLookup(plainWorkers(workers), plainClients(clients), services)
	appointments := FilterAppointments(viewer, set.responses(lookup))

	resp := &models.SchedulingResponse{
		User: models.SessionUserResponse{
			ID:         actor.UserID,
			FirmaID:    firmaID,
			UserName:   actor.Name,
			Status:     actor.Status,
			MyWorkerID: viewer.WorkerID,
			MyClientID: viewer.ClientID,
		},
		Workers:      make([]models.WorkerResponse, 0, len(workers)),
		Clients:      make([]models.ClientResponse, 0, len(clients)),
		Teams:        make([]models.TeamResponse, 0, len(teams)),
		Groupes:      make([]models.GroupeResponse, 0, len(groupes)),
		Services:     make([]models.ServiceResponse, 0, len(services)),
		Appointments: appointments,
		Reports:      FilterReports(viewer, reportResponses(reports), appointments),
		FirmaID:      firmaID,
	}
	for _, w := range workers {
		resp.Workers = append(resp.Workers, w.response())
	}
	for _, c := range clients {
		resp.Clients = append(resp.Clients, c.response())
	}
	for _, t := range teams {
		resp.Teams = append(resp.Teams, models.TeamResponse{ID: t.TeamID, TeamName: t.TeamName, FirmaID: t.FirmaID})
	}
	for _, gr := range groupes {
		resp.Groupes = append(resp.Groupes, models.GroupeResponse{ID: gr.GroupeID, GroupeName: gr.GroupeName, FirmaID: gr.FirmaID})
	}
	for _, s := range services {
		resp.Services = append(resp.Services, serviceResponse(s))
	}
	return resp, nil
}

// Appointments is the refetch used after an appointment_* event.
func (p *Projection) Appointments(ctx context.Context, actor *models.User) ([]models.AppointmentResponse, error) {
	firmaID := actor.Tenant()
	viewer, err := p.ResolveViewer(ctx, actor)
	if err != nil {
		return nil, err
	}

	var (
		workers  []models.Worker
		clients  []models.Client
		services []models.Service
		set      appointmentSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { workers, err = p.loadWorkers(gctx, firmaID); return })
	g.Go(func() (err error) { clients, err = p.loadClients(gctx, firmaID); return })
	g.Go(func() (err error) { services, err = p.loadServices(gctx, firmaID); return })
	g.Go(func() (err error) { set, err = p.loadAppointmentSet(gctx, firmaID); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return FilterAppointments(viewer, set.responses(newAppointmentLookup(workers, clients, services))), nil
}

// Reports is the refetch used after a report_* event.
func (p *Projection) Reports(ctx context.Context, actor *models.User) ([]models.ReportResponse, error) {
	firmaID := actor.Tenant()
	viewer, err := p.ResolveViewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	reports, err := p.loadReports(ctx, firmaID)
	if err != nil {
		return nil, err
	}
	if viewer.Role != models.StatusWorker && viewer.Role != models.StatusClient {
		return reportResponses(reports), nil
	}
	visible, err := p.Appointments(ctx, actor)
	if err != nil {
		return nil, err
	}
	return FilterReports(viewer, reportResponses(reports), visible), nil
}

func (p *Projection) Workers(ctx context.Context, firmaID string) ([]models.WorkerResponse, error) {
	rows, err := p.loadWorkerRows(ctx, firmaID)
	if err != nil {
		return nil, err
	}
	out := make([]models.WorkerResponse, 0, len(rows))
	for _, w := range rows {
		out = append(out, w.response())
	}
	return out, nil
}

func (p *Projection) Clients(ctx context.Context, firmaID string) ([]models.ClientResponse, error) {
	rows, err := p.loadClientRows(ctx, firmaID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ClientResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, c.response())
	}
	return out, nil
}

func (p *Projection) Services(ctx context.Context, firmaID string) ([]models.ServiceResponse, error) {
	services, err := p.loadServices(ctx, firmaID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, serviceResponse(s))
	}
	return out, nil
}

func (p *Projection) Teams(ctx context.Context, firmaID string) ([]models.Team, error) {
	var teams []models.Team
	err := p.db.WithContext(ctx).Where(`"firmaID" = ?`, firmaID).Order(`"teamName"`).Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	return teams, nil
}

func (p *Projection) Groupes(ctx context.Context, firmaID string) ([]models.Groupe, error) {
	var groupes []models.Groupe
	err := p.db.WithContext(ctx).Where(`"firmaID" = ?`, firmaID).Order(`"groupeName"`).Find(&groupes).Error
	if err != nil {
		return nil, fmt.Errorf("load groupes: %w", err)
	}
	return groupes, nil
}

type workerRow struct {
	models.Worker
	TeamName                 *string    `gorm:"column:teamName"`
	LastLoginAt              *time.Time `gorm:"column:lastLoginAt"`
	PushNotificationsEnabled *bool      `gorm:"column:pushNotificationsEnabled"`
	GeolocationEnabled       *bool      `gorm:"column:geolocationEnabled"`
	PwaVersion               *string    `gorm:"column:pwaVersion"`
	OsVersion                *string    `gorm:"column:osVersion"`
	BatteryLevel             *float64   `gorm:"column:batteryLevel"`
	BatteryStatus            *string    `gorm:"column:batteryStatus"`
	HasPushSubscription      bool       `gorm:"column:hasPushSubscription"`
}

const workerRowsQuery = `
SELECT w.*,
	t."teamName" AS "teamName",
	u."date" AS "lastLoginAt",
	u."pushNotificationsEnabled" AS "pushNotificationsEnabled",
	u."geolocationEnabled" AS "geolocationEnabled",
	u."pwaVersion" AS "pwaVersion",
	u."osVersion" AS "osVersion",
	u."batteryLevel" AS "batteryLevel",
	u."batteryStatus" AS "batteryStatus",
	EXISTS (SELECT 1 FROM push_subscriptions ps WHERE ps."userID" = w."userID") AS "hasPushSubscription"
FROM workers w
LEFT JOIN teams t ON t."teamID" = w."teamId"
LEFT JOIN users u ON u."userID" = w."userID"
WHERE w."firmaID" = ?
ORDER BY w."name"`

func (p *Projection) loadWorkerRows(ctx context.Context, firmaID string) ([]workerRow, error) {
	var rows []workerRow
	if err := p.db.WithContext(ctx).Raw(workerRowsQuery, firmaID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load workers: %w", err)
	}
	return rows, nil
}

func (p *Projection) loadWorkers(ctx context.Context, firmaID string) ([]models.Worker, error) {
	var workers []models.Worker
	if err := p.db.WithContext(ctx).Where(`"firmaID" = ?`, firmaID).Order(`"name"`).Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("load workers: %w", err)
	}
	return workers, nil
}

func (w workerRow) response() models.WorkerResponse {
	return models.WorkerResponse{
		ID:                       w.WorkerID,
		UserID:                   w.UserID,
		FirmaID:                  w.FirmaID,
		Name:                     w.Name,
		Surname:                  deref(w.Surname),
		Email:                    deref(w.Email),
		Phone:                    deref(w.Phone),
		Phone2:                   deref(w.Phone2),
		TeamID:                   deref(w.TeamID),
		TeamName:                 deref(w.TeamName),
		IsAdress:                 w.IsAdress,
		Status:                   w.Status,
		Country:                  deref(w.Country),
		Street:                   deref(w.Street),
		PostalCode:               deref(w.PostalCode),
		City:                     deref(w.City),
		HouseNumber:              deref(w.HouseNumber),
		Apartment:                deref(w.Apartment),
		District:                 deref(w.District),
		Latitude:                 derefFloat(w.Latitude),
		Longitude:                derefFloat(w.Longitude),
		LastLoginAt:              w.LastLoginAt,
		PushNotificationsEnabled: w.PushNotificationsEnabled,
		GeolocationEnabled:       w.GeolocationEnabled,
		HasPushSubscription:      w.HasPushSubscription,
		PwaVersion:               w.PwaVersion,
		OsVersion:                w.OsVersion,
		BatteryLevel:             w.BatteryLevel,
		BatteryStatus:            w.BatteryStatus,
	}
}

type clientRow struct {
	models.Client
	GroupeName *string `gorm:"column:groupeName"`
}

const clientRowsQuery = `
SELECT c.*, g."groupeName" AS "groupeName"
FROM clients c
LEFT JOIN groupes g ON g."groupeID" = c."groupeID"
WHERE c."firmaID" = ?
ORDER BY c."name"`

func (p *Projection) loadClientRows(ctx context.Context, firmaID string) ([]clientRow, error) {
	var rows []clientRow
	if err := p.db.WithContext(ctx).Raw(clientRowsQuery, firmaID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	return rows, nil
}

func (p *Projection) loadClients(ctx context.Context, firmaID string) ([]models.Client, error) {
	var clients []models.Client
	if err := p.db.WithContext(ctx).Where(`"firmaID" = ?`, firmaID).Order(`"name"`).Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	return clients, nil
}

func (c clientRow) response() models.ClientResponse {
	return models.ClientResponse{
		ID:          c.ClientID,
		UserID:      c.UserID,
		FirmaID:     c.FirmaID,
		Name:        c.Name,
		Surname:     deref(c.Surname),
		Email:       deref(c.Email),
		Phone:       deref(c.Phone),
		Phone2:      deref(c.Phone2),
		Status:      c.Status,
		GroupeID:    deref(c.GroupeID),
		GroupeName:  deref(c.GroupeName),
		Country:     deref(c.Country),
		Street:      deref(c.Street),
		PostalCode:  deref(c.PostalCode),
		City:        deref(c.City),
		HouseNumber: deref(c.HouseNumber),
		Apartment:   deref(c.Apartment),
		District:    deref(c.District),
		Latitude:    derefFloat(c.Latitude),
		Longitude:   derefFloat(c.Longitude),
	}
}

func plainWorkers(rows []workerRow) []models.Worker {
	out := make([]models.Worker, len(rows))
	for i, r := range rows {
		out[i] = r.Worker
	}
	return out
}

func plainClients(rows []clientRow) []models.Client {
	out := make([]models.Client, len(rows))
	for i, r := range rows {
		out[i] = r.Client
	}
	return out
}

func (p *Projection) loadServices(ctx context.Context, firmaID string) ([]models.Service, error) {
	var services []models.Service
	err := p.db.WithContext(ctx).Where(`"firmaID" = ?`, firmaID).Order(`"order", "name"`).Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	return services, nil
}

func serviceResponse(s models.Service) models.ServiceResponse {
	return models.ServiceResponse{
		ID:          s.ServiceID,
		FirmaID:     s.FirmaID,
		Name:        s.Name,
		Description: deref(s.Description),
		Duration:    s.Duration,
		Price:       s.Price,
		ParentID:    s.ParentID,
		IsGroup:     s.IsGroup,
		Order:       s.Order,
	}
}

func (p *Projection) loadReports(ctx context.Context, firmaID string) ([]models.Report, error) {
	var reports []models.Report
	err := p.db.WithContext(ctx).
		Preload("Photos").
		Where(`"firmaID" = ?`, firmaID).
		Order(`"date" DESC`).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	return reports, nil
}

func reportResponses(reports []models.Report) []models.ReportResponse {
	out := make([]models.ReportResponse, 0, len(reports))
	for _, r := range reports {
		photos := make([]models.ReportPhotoResponse, 0, len(r.Photos))
		for _, ph := range r.Photos {
			photos = append(photos, models.ReportPhotoResponse{PhotoID: ph.PhotoID, URL: ph.URL, Note: ph.Note})
		}
		out = append(out, models.ReportResponse{
			ID:                         r.ReportID,
			FirmaID:                    r.FirmaID,
			WorkerID:                   r.WorkerID,
			AppointmentID:              r.AppointmentID,
			Notes:                      deref(r.Notes),
			Date:                       r.Date,
			OpenAt:                     r.OpenAt,
			CloseAt:                    r.CloseAt,
			OpenLatitude:               r.OpenLatitude,
			OpenLongitude:              r.OpenLongitude,
			OpenAddress:                r.OpenAddress,
			OpenDistanceToAppointment:  r.OpenDistanceToAppointment,
			CloseLatitude:              r.CloseLatitude,
			CloseLongitude:             r.CloseLongitude,
			CloseAddress:               r.CloseAddress,
			CloseDistanceToAppointment: r.CloseDistanceToAppointment,
			Photos:                     photos,
		})
	}
	return out
}

// appointmentLink is one junction row of either appointment junction.
type appointmentLink struct {
	AppointmentID string `gorm:"column:appointmentID"`
	LinkedID      string `gorm:"column:linkedID"`
}

type appointmentSet struct {
	appointments []models.Appointment
	workers      map[string][]string
	services     map[string][]string
}

func (p *Projection) loadAppointmentSet(ctx context.Context, firmaID string) (appointmentSet, error) {
	set := appointmentSet{}
	db := p.db.WithContext(ctx)

	err := db.Where(`"firmaID" = ?`, firmaID).Order(`"date", "startTime"`).Find(&set.appointments).Error
	if err != nil {
		return set, fmt.Errorf("load appointments: %w", err)
	}

	var workerLinks, serviceLinks []appointmentLink
	err = db.Raw(`SELECT aw."appointmentID", aw."workerID" AS "linkedID"
		FROM appointment_workers aw
		JOIN appointments a ON a."appointmentID" = aw."appointmentID"
		WHERE a."firmaID" = ?
		ORDER BY aw."workerID"`, firmaID).Scan(&workerLinks).Error
	if err != nil {
		return set, fmt.Errorf("load appointment workers: %w", err)
	}
	err = db.Raw(`SELECT aps."appointmentID", aps."serviceID" AS "linkedID"
		FROM appointment_services aps
		JOIN appointments a ON a."appointmentID" = aps."appointmentID"
		WHERE a."firmaID" = ?
		ORDER BY aps."serviceID"`, firmaID).Scan(&serviceLinks).Error
	if err != nil {
		return set, fmt.Errorf("load appointment services: %w", err)
	}

	set.workers = groupLinks(workerLinks)
	set.services = groupLinks(serviceLinks)
	return set, nil
}

func groupLinks(links []appointmentLink) map[string][]string {
	out := make(map[string][]string)
	for _, l := range links {
		out[l.AppointmentID] = append(out[l.AppointmentID], l.LinkedID)
	}
	return out
}

type appointmentLookup struct {
	workers  map[string]models.Worker
	clients  map[string]models.Client
	services map[string]models.Service
}

func newAppointmentLookup(workers []models.Worker, clients []models.Client, services []models.Service) appointmentLookup {
	l := appointmentLookup{
		workers:  make(map[string]models.Worker, len(workers)),
		clients:  make(map[string]models.Client, len(clients)),
		services: make(map[string]models.Service, len(services)),
	}
	for _, w := range workers {
		l.workers[w.WorkerID] = w
	}
	for _, c := range clients {
		l.clients[c.ClientID] = c
	}
	for _, s := range services {
		l.services[s.ServiceID] = s
	}
	return l
}

func (set appointmentSet) responses(l appointmentLookup) []models.AppointmentResponse {
	out := make([]models.AppointmentResponse, 0, len(set.appointments))
	for _, a := range set.appointments {
		out = append(out, appointmentResponse(a, set.workers[a.AppointmentID], set.services[a.AppointmentID], l))
	}
	return out
}

// appointmentResponse resolves the nested worker, service and client
// sub-objects. Junction entries whose target is gone are skipped.
func appointmentResponse(a models.Appointment, workerIDs, serviceIDs []string, l appointmentLookup) models.AppointmentResponse {
	if workerIDs == nil {
		workerIDs = []string{}
	}
	resp := models.AppointmentResponse{
		ID:          a.AppointmentID,
		FirmaID:     a.FirmaID,
		UserID:      a.UserID,
		ClientID:    a.ClientID,
		WorkerID:    a.WorkerID,
		WorkerIDs:   workerIDs,
		Date:        a.Date,
		IsFixedTime: a.IsFixedTime,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Duration:    a.Duration,
		Fahrzeit:    a.Fahrzeit,
		IsOpen:      a.IsOpen,
		OpenedAt:    a.OpenedAt,
		ClosedAt:    a.ClosedAt,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Services:    make([]models.ServiceResponse, 0, len(serviceIDs)),
		Worker:      make([]models.AppointmentWorkerResponse, 0, len(workerIDs)),
	}
	for _, id := range serviceIDs {
		if s, ok := l.services[id]; ok {
			resp.Services = append(resp.Services, serviceResponse(s))
		}
	}
	for _, id := range workerIDs {
		w, ok := l.workers[id]
		if !ok {
			continue
		}
		resp.Worker = append(resp.Worker, models.AppointmentWorkerResponse{
			ID:       w.WorkerID,
			FirmaID:  w.FirmaID,
			Name:     w.Name,
			Surname:  deref(w.Surname),
			Email:    deref(w.Email),
			TeamID:   deref(w.TeamID),
			Status:   w.Status,
			IsAdress: w.IsAdress,
		})
	}
	if c, ok := l.clients[a.ClientID]; ok {
		resp.Client = &models.AppointmentClientResponse{
			ID:          c.ClientID,
			FirmaID:     c.FirmaID,
			Name:        c.Name,
			Surname:     deref(c.Surname),
			Status:      c.Status,
			Country:     deref(c.Country),
			Street:      deref(c.Street),
			PostalCode:  deref(c.PostalCode),
			City:        deref(c.City),
			HouseNumber: deref(c.HouseNumber),
			Latitude:    derefFloat(c.Latitude),
			Longitude:   derefFloat(c.Longitude),
		}
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
