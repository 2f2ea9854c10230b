package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	JTI       uuid.UUID `json:"jti" gorm:"type:uuid;uniqueIndex"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}
