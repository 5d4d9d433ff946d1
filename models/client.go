package models

import "strings"

type Client struct {
	ClientID string  `json:"clientID" gorm:"column:clientID;primaryKey;size:64"`
	UserID   *string `json:"userID" gorm:"column:userID;size:64;index"`
	FirmaID  string  `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	Name     string  `json:"name" gorm:"column:name;size:255;not null"`
	Surname  *string `json:"surname" gorm:"column:surname;size:255"`
	Email    *string `json:"email" gorm:"column:email;size:255"`
	Phone    *string `json:"phone" gorm:"column:phone;size:32"`
	Phone2   *string `json:"phone2" gorm:"column:phone2;size:32"`
	Status   int     `json:"status" gorm:"column:status;default:0"`
	GroupeID *string `json:"groupeID" gorm:"column:groupeID;size:64"`
	PostalAddress `gorm:"embedded"`
}

// TableName specifies the table name for the Client model
func (Client) TableName() string {
	return "clients"
}

func (c *Client) FullName() string {
	return joinName(c.Name, c.Surname)
}

func joinName(name string, surname *string) string {
	if surname == nil {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name + " " + *surname)
}
