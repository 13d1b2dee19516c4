package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DataSource struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId        uuid.UUID `gorm:"type:uuid;not null;index"`
	Name          string    `gorm:"type:varchar(255);not null"`
	SourceKind    string    `gorm:"type:varchar(32);not null"`
	RowCount      int       `gorm:"not null"`
	SchemaProfile datatypes.JSON
	SampleRows    datatypes.JSON
	RefreshedAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (DataSource) TableName() string {
	return "data_sources"
}
