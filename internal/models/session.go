package models

import (
	"time"
)

type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	SharedEventIDs []string  `json:"shared_event_ids"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}
