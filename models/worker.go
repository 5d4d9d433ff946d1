package models

type Worker struct {
	WorkerID string  `json:"workerID" gorm:"column:workerID;primaryKey;size:64"`
	UserID   *string `json:"userID" gorm:"column:userID;size:64;index"`
	FirmaID  string  `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	Name     string  `json:"name" gorm:"column:name;size:255;not null"`
	Surname  *string `json:"surname" gorm:"column:surname;size:255"`
	Email    *string `json:"email" gorm:"column:email;size:255"`
	Phone    *string `json:"phone" gorm:"column:phone;size:32"`
	Phone2   *string `json:"phone2" gorm:"column:phone2;size:32"`
	TeamID   *string `json:"teamId" gorm:"column:teamId;size:64"`
	IsAdress bool    `json:"isAdress" gorm:"column:isAdress;default:false"`
	Status   int     `json:"status" gorm:"column:status;default:0"`
	PostalAddress `gorm:"embedded"`
}

// TableName specifies the table name for the Worker model
func (Worker) TableName() string {
	return "workers"
}

// FullName joins name and surname the way push texts address a worker.
func (w *Worker) FullName() string {
	return joinName(w.Name, w.Surname)
}
