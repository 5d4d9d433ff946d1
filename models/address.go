package models

// PostalAddress is the address block shared by workers and clients.
type PostalAddress struct {
	Country     *string  `json:"country" gorm:"column:country;size:64"`
	Street      *string  `json:"street" gorm:"column:street;size:255"`
	PostalCode  *string  `json:"postalCode" gorm:"column:postalCode;size:32"`
	City        *string  `json:"city" gorm:"column:city;size:128"`
	HouseNumber *string  `json:"houseNumber" gorm:"column:houseNumber;size:32"`
	Apartment   *string  `json:"apartment" gorm:"column:apartment;size:32"`
	District    *string  `json:"district" gorm:"column:district;size:128"`
	Latitude    *float64 `json:"latitude" gorm:"column:latitude"`
	Longitude   *float64 `json:"longitude" gorm:"column:longitude"`
}
