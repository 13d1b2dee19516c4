package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email              string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName           string    `gorm:"type:varchar(255)"`
	SubscriptionTier   string    `gorm:"type:varchar(32);not null"`
	SubscriptionStatus string    `gorm:"type:varchar(32);not null"`
	LengthPreference   string    `gorm:"type:varchar(16);not null"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
