package models

import "time"

type Appointment struct {
	AppointmentID string     `json:"appointmentID" gorm:"column:appointmentID;primaryKey;size:64"`
	FirmaID       string     `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	UserID        string     `json:"userID" gorm:"column:userID;size:64"`
	ClientID      string     `json:"clientID" gorm:"column:clientID;size:64;not null;index"`
	WorkerID      string     `json:"workerId" gorm:"column:workerId;size:64"`
	Date          time.Time  `json:"date" gorm:"column:date;not null"`
	IsFixedTime   bool       `json:"isFixedTime" gorm:"column:isFixedTime;default:false"`
	StartTime     time.Time  `json:"startTime" gorm:"column:startTime;not null"`
	EndTime       time.Time  `json:"endTime" gorm:"column:endTime;not null"`
	Duration      int        `json:"duration" gorm:"column:duration;default:0"`
	Fahrzeit      int        `json:"fahrzeit" gorm:"column:fahrzeit;default:0"`
	IsOpen        bool       `json:"isOpen" gorm:"column:isOpen;default:false"`
	OpenedAt      *time.Time `json:"openedAt" gorm:"column:openedAt"`
	ClosedAt      *time.Time `json:"closedAt" gorm:"column:closedAt"`
	Latitude      *float64   `json:"latitude" gorm:"column:latitude"`
	Longitude     *float64   `json:"longitude" gorm:"column:longitude"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"column:createdAt;autoCreateTime"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}

// AppointmentWorker is the appointment/worker junction row.
type AppointmentWorker struct {
	AppointmentID string `gorm:"column:appointmentID;primaryKey;size:64"`
	WorkerID      string `gorm:"column:workerID;primaryKey;size:64"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID;references:AppointmentID;constraint:OnDelete:CASCADE"`
	Worker      *Worker      `gorm:"foreignKey:WorkerID;references:WorkerID;constraint:OnDelete:CASCADE"`
}

func (AppointmentWorker) TableName() string {
	return "appointment_workers"
}

// AppointmentService is the appointment/service junction row.
type AppointmentService struct {
	AppointmentID string `gorm:"column:appointmentID;primaryKey;size:64"`
	ServiceID     string `gorm:"column:serviceID;primaryKey;size:64"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID;references:AppointmentID;constraint:OnDelete:CASCADE"`
	Service     *Service     `gorm:"foreignKey:ServiceID;references:ServiceID;constraint:OnDelete:CASCADE"`
}

func (AppointmentService) TableName() string {
	return "appointment_services"
}

// AppointmentRecord is an appointment together with its junction sets, as
// committed.
type AppointmentRecord struct {
	Appointment
	WorkerIDs  []string `json:"workerIds"`
	ServiceIDs []string `json:"serviceIds"`
}
