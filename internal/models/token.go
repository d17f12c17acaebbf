package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const TokenTTL = 10 * time.Minute

type Token struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Token     string    `json:"token" gorm:"index;not null"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
}

func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
