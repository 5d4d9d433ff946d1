package models

import "time"

// Response shapes consumed by the scheduling UI. Primary keys are exposed as
// "id" and nested sub-objects are resolved server-side.

type SessionUserResponse struct {
	ID         string  `json:"id"`
	FirmaID    string  `json:"firmaID"`
	UserName   string  `json:"userName"`
	Status     *int    `json:"status"`
	MyWorkerID *string `json:"myWorkerID"`
	MyClientID *string `json:"myClientID"`
}

type WorkerResponse struct {
	ID                       string     `json:"id"`
	UserID                   *string    `json:"userID"`
	FirmaID                  string     `json:"firmaID"`
	Name                     string     `json:"name"`
	Surname                  string     `json:"surname"`
	Email                    string     `json:"email"`
	Phone                    string     `json:"phone"`
	Phone2                   string     `json:"phone2"`
	TeamID                   string     `json:"teamId"`
	TeamName                 string     `json:"teamName"`
	IsAdress                 bool       `json:"isAdress"`
	Status                   int        `json:"status"`
	Country                  string     `json:"country"`
	Street                   string     `json:"street"`
	PostalCode               string     `json:"postalCode"`
	City                     string     `json:"city"`
	HouseNumber              string     `json:"houseNumber"`
	Apartment                string     `json:"apartment"`
	District                 string     `json:"district"`
	Latitude                 float64    `json:"latitude"`
	Longitude                float64    `json:"longitude"`
	LastLoginAt              *time.Time `json:"lastLoginAt"`
	PushNotificationsEnabled *bool      `json:"pushNotificationsEnabled"`
	GeolocationEnabled       *bool      `json:"geolocationEnabled"`
	HasPushSubscription      bool       `json:"hasPushSubscription"`
	PwaVersion               *string    `json:"pwaVersion"`
	OsVersion                *string    `json:"osVersion"`
	BatteryLevel             *float64   `json:"batteryLevel"`
	BatteryStatus            *string    `json:"batteryStatus"`
}

type ClientResponse struct {
	ID          string  `json:"id"`
	UserID      *string `json:"userID"`
	FirmaID     string  `json:"firmaID"`
	Name        string  `json:"name"`
	Surname     string  `json:"surname"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Phone2      string  `json:"phone2"`
	Status      int     `json:"status"`
	GroupeID    string  `json:"groupeID"`
	GroupeName  string  `json:"groupeName"`
	Country     string  `json:"country"`
	Street      string  `json:"street"`
	PostalCode  string  `json:"postalCode"`
	City        string  `json:"city"`
	HouseNumber string  `json:"houseNumber"`
	Apartment   string  `json:"apartment"`
	District    string  `json:"district"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type TeamResponse struct {
	ID       string `json:"id"`
	TeamName string `json:"teamName"`
	FirmaID  string `json:"firmaID"`
}

type GroupeResponse struct {
	ID         string `json:"id"`
	GroupeName string `json:"groupeName"`
	FirmaID    string `json:"firmaID"`
}

type ServiceResponse struct {
	ID          string   `json:"id"`
	FirmaID     string   `json:"firmaID"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Duration    int      `json:"duration"`
	Price       *float64 `json:"price,omitempty"`
	ParentID    *string  `json:"parentId"`
	IsGroup     bool     `json:"isGroup"`
	Order       int      `json:"order"`
}

type AppointmentWorkerResponse struct {
	ID       string `json:"id"`
	FirmaID  string `json:"firmaID"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	TeamID   string `json:"teamId"`
	Status   int    `json:"status"`
	IsAdress bool   `json:"isAdress"`
}

type AppointmentClientResponse struct {
	ID          string  `json:"id"`
	FirmaID     string  `json:"firmaID"`
	Name        string  `json:"name"`
	Surname     string  `json:"surname"`
	Status      int     `json:"status"`
	Country     string  `json:"country"`
	Street      string  `json:"street"`
	PostalCode  string  `json:"postalCode"`
	City        string  `json:"city"`
	HouseNumber string  `json:"houseNumber"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type AppointmentResponse struct {
	ID          string                      `json:"id"`
	FirmaID     string                      `json:"firmaID"`
	UserID      string                      `json:"userID"`
	ClientID    string                      `json:"clientID"`
	WorkerID    string                      `json:"workerId"`
	WorkerIDs   []string                    `json:"workerIds"`
	Date        time.Time                   `json:"date"`
	IsFixedTime bool                        `json:"isFixedTime"`
	StartTime   time.Time                   `json:"startTime"`
	EndTime     time.Time                   `json:"endTime"`
	Duration    int                         `json:"duration"`
	Fahrzeit    int                         `json:"fahrzeit"`
	IsOpen      bool                        `json:"isOpen"`
	OpenedAt    *time.Time                  `json:"openedAt"`
	ClosedAt    *time.Time                  `json:"closedAt"`
	Latitude    *float64                    `json:"latitude"`
	Longitude   *float64                    `json:"longitude"`
	Services    []ServiceResponse           `json:"services"`
	Worker      []AppointmentWorkerResponse `json:"worker"`
	Client      *AppointmentClientResponse  `json:"client,omitempty"`
}

type ReportPhotoResponse struct {
	PhotoID string `json:"photoID"`
	URL     string `json:"url"`
	Note    string `json:"note"`
}

type ReportResponse struct {
	ID                         string                `json:"id"`
	FirmaID                    string                `json:"firmaID"`
	WorkerID                   string                `json:"workerId"`
	AppointmentID              string                `json:"appointmentId"`
	Notes                      string                `json:"notes"`
	Date                       time.Time             `json:"date"`
	OpenAt                     *time.Time            `json:"openAt"`
	CloseAt                    *time.Time            `json:"closeAt"`
	OpenLatitude               *float64              `json:"openLatitude"`
	OpenLongitude              *float64              `json:"openLongitude"`
	OpenAddress                *string               `json:"openAddress"`
	OpenDistanceToAppointment  *float64              `json:"openDistanceToAppointment"`
	CloseLatitude              *float64              `json:"closeLatitude"`
	CloseLongitude             *float64              `json:"closeLongitude"`
	CloseAddress               *string               `json:"closeAddress"`
	CloseDistanceToAppointment *float64              `json:"closeDistanceToAppointment"`
	Photos                     []ReportPhotoResponse `json:"photos"`
}

// SchedulingResponse is the full tenant snapshot.
type SchedulingResponse struct {
	User         SessionUserResponse   `json:"user"`
	Workers      []WorkerResponse      `json:"workers"`
	Clients      []ClientResponse      `json:"clients"`
	Teams        []TeamResponse        `json:"teams"`
	Groupes      []GroupeResponse      `json:"groupes"`
	Services     []ServiceResponse     `json:"services"`
	Appointments []AppointmentResponse `json:"appointments"`
	Reports      []ReportResponse      `json:"reports"`
	FirmaID      string                `json:"firmaID"`
}
