package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/weddingsync/internal/models"
)

var ErrNotFound = errors.New("not found")

// SyncUpdateRepository is the durable store behind the sync-update ledger.
type SyncUpdateRepository interface {
	// Insert persists a new pending update and fills in ID and Seq.
	Insert(ctx context.Context, update *models.SyncUpdate) error
	// ClaimPending marks every update matching filter as processed and returns
	// them ordered by (Timestamp, Seq). An update is claimed by at most one call.
	ClaimPending(ctx context.Context, filter models.DrainFilter, now time.Time) ([]*models.SyncUpdate, error)
	// List returns updates for a shared event without changing them.
	List(ctx context.Context, sharedEventID string, includeProcessed bool) ([]*models.SyncUpdate, error)
	CountProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	ListPresence(ctx context.Context, sharedEventID string) ([]models.Presence, error)
	DeletePresence(ctx context.Context, sharedEventID, userID string) error
}

// Notifier wakes up drains waiting on a shared event. Delivery is best effort;
// the ledger itself is the source of truth.
type Notifier interface {
	Publish(ctx context.Context, sharedEventID, updateID string) error
	// Subscribe returns a channel that receives a value after each publish for
	// sharedEventID, and a func that releases the subscription.
	Subscribe(ctx context.Context, sharedEventID string) (<-chan struct{}, func(), error)
}
