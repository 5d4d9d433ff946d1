package models

import "time"

// UserStatus is the role column of the users table. A NULL status predates
// role migration and is treated as director.
type UserStatus int

const (
	StatusDirector UserStatus = 0
	StatusWorker   UserStatus = 1
	StatusClient   UserStatus = 2
	StatusManager  UserStatus = 3
)

type User struct {
	UserID                   string     `json:"userID" gorm:"column:userID;primaryKey;size:64"`
	FirmaID                  *string    `json:"firmaID" gorm:"column:firmaID;size:64;index"`
	Name                     string     `json:"name" gorm:"column:name;size:255"`
	Email                    *string    `json:"email" gorm:"column:email;size:255"`
	Status                   *int       `json:"status" gorm:"column:status"`
	IsAdmin                  bool       `json:"isAdmin" gorm:"column:isAdmin;default:false"`
	LastLoginAt              *time.Time `json:"date" gorm:"column:date"`
	PushNotificationsEnabled *bool      `json:"pushNotificationsEnabled" gorm:"column:pushNotificationsEnabled"`
	GeolocationEnabled       *bool      `json:"geolocationEnabled" gorm:"column:geolocationEnabled"`
	PwaVersion               *string    `json:"pwaVersion" gorm:"column:pwaVersion;size:32"`
	OsVersion                *string    `json:"osVersion" gorm:"column:osVersion;size:64"`
	BatteryLevel             *float64   `json:"batteryLevel" gorm:"column:batteryLevel"`
	BatteryStatus            *string    `json:"batteryStatus" gorm:"column:batteryStatus;size:32"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Role returns the effective role, mapping a NULL status to director.
func (u *User) Role() UserStatus {
	if u.Status == nil {
		return StatusDirector
	}
	return UserStatus(*u.Status)
}

// Tenant returns the user's firmaID or an empty string.
func (u *User) Tenant() string {
	if u.FirmaID == nil {
		return ""
	}
	return *u.FirmaID
}

// IsDirector reports whether the user may perform scheduling writes.
func (u *User) IsDirector() bool {
	return u.Role() == StatusDirector
}

// IsWorker checks if the user is a worker
func (u *User) IsWorker() bool {
	return u.Role() == StatusWorker
}

// IsClient checks if the user is a client
func (u *User) IsClient() bool {
	return u.Role() == StatusClient
}

// IsDirectorEquivalent covers directors and managers, the roles allowed to
// receive director pushes and to verify devices.
func (u *User) IsDirectorEquivalent() bool {
	role := u.Role()
	return u.IsAdmin || role == StatusDirector || role == StatusManager
}

// PushAllowed is false only when the user explicitly disabled push.
func (u *User) PushAllowed() bool {
	return u.PushNotificationsEnabled == nil || *u.PushNotificationsEnabled
}
