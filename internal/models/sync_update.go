package models

import (
	"encoding/json"
	"time"
)

type UpdateType string

const (
	UpdateGuests      UpdateType = "guests"
	UpdateChecklist   UpdateType = "checklist"
	UpdateSeating     UpdateType = "seating"
	UpdatePreferences UpdateType = "preferences"
)

type UpdateAction string

const (
	ActionAdd     UpdateAction = "add"
	ActionUpdate  UpdateAction = "update"
	ActionDelete  UpdateAction = "delete"
	ActionRefresh UpdateAction = "refresh"
)

// SyncUpdate is one edit event recorded for a shared wedding event. Only
// Processed and ProcessedAt change after insert, and Processed never goes
// back to false.
type SyncUpdate struct {
	ID            string          `json:"id"`
	SharedEventID string          `json:"sharedEventId"`
	UserID        string          `json:"userId"`
	Type          UpdateType      `json:"type"`
	Action        UpdateAction    `json:"action"`
	Data          json.RawMessage `json:"data"`
	Timestamp     int64           `json:"timestamp"`
	Seq           int64           `json:"seq"`
	Processed     bool            `json:"processed"`
	CreatedAt     time.Time       `json:"createdAt"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
}

// Less orders updates by timestamp, then by store sequence.
func (u *SyncUpdate) Less(other *SyncUpdate) bool {
	if u.Timestamp != other.Timestamp {
		return u.Timestamp < other.Timestamp
	}
	return u.Seq < other.Seq
}

// DrainFilter selects the pending updates a drain may claim.
type DrainFilter struct {
	SharedEventID string
	// Since excludes updates with Timestamp <= Since when set.
	Since *int64
	// ExcludeUserID drops updates authored by this user.
	ExcludeUserID string
	// Limit caps the batch; zero means no cap.
	Limit int
}

// Matches reports whether u is pending and passes the filter.
func (f DrainFilter) Matches(u *SyncUpdate) bool {
	if u.Processed || u.SharedEventID != f.SharedEventID {
		return false
	}
	if f.Since != nil && u.Timestamp <= *f.Since {
		return false
	}
	if f.ExcludeUserID != "" && u.UserID == f.ExcludeUserID {
		return false
	}
	return true
}
