package models

import "time"

type Report struct {
	ReportID                   string     `json:"reportID" gorm:"column:reportID;primaryKey;size:64"`
	FirmaID                    string     `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	WorkerID                   string     `json:"workerId" gorm:"column:workerId;size:64;not null"`
	AppointmentID              string     `json:"appointmentId" gorm:"column:appointmentId;size:64;not null;index"`
	Notes                      *string    `json:"notes" gorm:"column:notes;type:text"`
	Date                       time.Time  `json:"date" gorm:"column:date;autoCreateTime"`
	CreatedAt                  time.Time  `json:"createdAt" gorm:"column:createdAt;autoCreateTime"`
	OpenAt                     *time.Time `json:"openAt" gorm:"column:openAt"`
	CloseAt                    *time.Time `json:"closeAt" gorm:"column:closeAt"`
	OpenLatitude               *float64   `json:"openLatitude" gorm:"column:openLatitude"`
	OpenLongitude              *float64   `json:"openLongitude" gorm:"column:openLongitude"`
	OpenAddress                *string    `json:"openAddress" gorm:"column:openAddress"`
	OpenDistanceToAppointment  *float64   `json:"openDistanceToAppointment" gorm:"column:openDistanceToAppointment"`
	CloseLatitude              *float64   `json:"closeLatitude" gorm:"column:closeLatitude"`
	CloseLongitude             *float64   `json:"closeLongitude" gorm:"column:closeLongitude"`
	CloseAddress               *string    `json:"closeAddress" gorm:"column:closeAddress"`
	CloseDistanceToAppointment *float64   `json:"closeDistanceToAppointment" gorm:"column:closeDistanceToAppointment"`

	Photos []ReportPhoto `json:"photos" gorm:"foreignKey:ReportID;references:ReportID;constraint:OnDelete:CASCADE"`

	Appointment *Appointment `json:"-" gorm:"foreignKey:AppointmentID;references:AppointmentID;constraint:OnDelete:CASCADE"`
	Worker      *Worker      `json:"-" gorm:"foreignKey:WorkerID;references:WorkerID;constraint:OnDelete:CASCADE"`
}

func (Report) TableName() string {
	return "reports"
}

type ReportPhoto struct {
	PhotoID  string `json:"photoID" gorm:"column:photoID;primaryKey;size:64"`
	ReportID string `json:"-" gorm:"column:reportID;size:64;not null;index"`
	URL      string `json:"url" gorm:"column:url;type:text;not null"`
	Note     string `json:"note" gorm:"column:note;type:text"`
}

func (ReportPhoto) TableName() string {
	return "report_photos"
}
