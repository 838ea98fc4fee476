package models

import (
	"time"
)

type Presence struct {
	SharedEventID string    `json:"sharedEventId"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	LastSeen      time.Time `json:"lastSeen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusAway    PresenceStatus = "away"
)
