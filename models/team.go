package models

type Team struct {
	TeamID   string `json:"teamID" gorm:"column:teamID;primaryKey;size:64"`
	FirmaID  string `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	TeamName string `json:"teamName" gorm:"column:teamName;size:255;not null"`
}

func (Team) TableName() string {
	return "teams"
}

type Groupe struct {
	GroupeID   string `json:"groupeID" gorm:"column:groupeID;primaryKey;size:64"`
	FirmaID    string `json:"firmaID" gorm:"column:firmaID;size:64;not null;index"`
	GroupeName string `json:"groupeName" gorm:"column:groupeName;size:255;not null"`
}

func (Groupe) TableName() string {
	return "groupes"
}
