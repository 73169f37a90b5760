package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	HashedPassword string         `gorm:"not null;size:255" json:"-"`
	FullName       string         `gorm:"size:100" json:"full_name"`
	Avatar         string         `gorm:"size:500" json:"avatar"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	IsSuperuser    bool           `gorm:"default:false" json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
