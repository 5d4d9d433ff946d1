package models

import "time"

// PushSubscription is one registered web-push endpoint of a user.
type PushSubscription struct {
	ID         uint       `json:"id" gorm:"column:id;primaryKey"`
	UserID     string     `json:"userID" gorm:"column:userID;size:64;not null;index"`
	Endpoint   string     `json:"endpoint" gorm:"column:endpoint;type:text;not null;uniqueIndex"`
	P256dh     string     `json:"p256dh" gorm:"column:p256dh;type:text;not null"`
	Auth       string     `json:"auth" gorm:"column:auth;type:text;not null"`
	LastUsedAt *time.Time `json:"lastUsedAt" gorm:"column:lastUsedAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"column:createdAt;autoCreateTime"`

	User *User `json:"-" gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
