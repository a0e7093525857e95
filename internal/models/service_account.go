package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceAccount is an API client of the sync backend (e.g. the booking
// system). Each account carries the capability list its tokens are minted with.
type ServiceAccount struct {
	ID           uuid.UUID `json:"id"`
	ClientID     string    `json:"client_id"`
	SecretHash   string    `json:"-"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}
