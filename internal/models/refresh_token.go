package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record behind one issued refresh token.
// The token itself is stored as a SHA-256 hash; TokenFamily ties together
// every token descended from one login so a whole lineage can be revoked
// at once when a replay is detected.
type RefreshToken struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash   string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	TokenFamily string    `gorm:"not null;size:36;index" json:"-"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked     bool      `gorm:"default:false" json:"revoked"`
	DeviceInfo  string    `gorm:"size:500" json:"device_info,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	User        User      `gorm:"foreignKey:UserID" json:"-"`
}
