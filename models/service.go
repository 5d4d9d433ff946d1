package models

// Service is an entry of a firma's service catalog. Groups hold child
// services through ParentID.
type Service struct {
	ServiceID   string   `json:"serviceID" gorm:"column:serviceID;primaryKey;size:64"`
	FirmaID     string   `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	Name        string   `json:"name" gorm:"column:name;size:255;not null"`
	Description *string  `json:"description" gorm:"column:description;type:text"`
	Duration    int      `json:"duration" gorm:"column:duration;default:0"`
	Price       *float64 `json:"price" gorm:"column:price;type:numeric(10,2)"`
	ParentID    *string  `json:"parentId" gorm:"column:parentId;size:64"`
	IsGroup     bool     `json:"isGroup" gorm:"column:isGroup;default:false"`
	Order       int      `json:"order" gorm:"column:order;default:0"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}
