package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/prudhvinik1/weddingsync/internal/models"
)

const tblSyncUpdates = "sync_updates"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblSyncUpdates: {
			Name: tblSyncUpdates,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"shared_event_id": {
					Name:    "shared_event_id",
					Indexer: &memdb.StringFieldIndex{Field: "SharedEventID"},
				},
				"processed": {
					Name:    "processed",
					Indexer: &memdb.BoolFieldIndex{Field: "Processed"},
				},
			},
		},
	},
}

// MemorySyncUpdateRepository keeps the ledger in go-memdb. Write transactions
// are serialized by memdb, which makes each claim atomic.
type MemorySyncUpdateRepository struct {
	db  *memdb.MemDB
	seq atomic.Int64
}

func NewMemorySyncUpdateRepository() (*MemorySyncUpdateRepository, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &MemorySyncUpdateRepository{db: db}, nil
}

func (r *MemorySyncUpdateRepository) Insert(_ context.Context, update *models.SyncUpdate) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	stored := cloneUpdate(update)
	stored.ID = uuid.New().String()
	stored.Seq = r.seq.Add(1)
	stored.Processed = false
	stored.ProcessedAt = nil

	if err := txn.Insert(tblSyncUpdates, stored); err != nil {
		return fmt.Errorf("failed to insert sync update: %w", err)
	}
	txn.Commit()

	update.ID = stored.ID
	update.Seq = stored.Seq
	update.Processed = false
	return nil
}

func (r *MemorySyncUpdateRepository) ClaimPending(_ context.Context, filter models.DrainFilter, now time.Time) ([]*models.SyncUpdate, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	pending, err := r.collect(txn, filter.SharedEventID, filter.Matches)
	if err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(pending) > filter.Limit {
		pending = pending[:filter.Limit]
	}

	claimed := make([]*models.SyncUpdate, 0, len(pending))
	for _, update := range pending {
		next := cloneUpdate(update)
		processedAt := now
		next.Processed = true
		next.ProcessedAt = &processedAt

		if err := txn.Insert(tblSyncUpdates, next); err != nil {
			return nil, fmt.Errorf("failed to mark sync update processed: %w", err)
		}
		claimed = append(claimed, cloneUpdate(next))
	}
	txn.Commit()

	return claimed, nil
}

func (r *MemorySyncUpdateRepository) List(_ context.Context, sharedEventID string, includeProcessed bool) ([]*models.SyncUpdate, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	updates, err := r.collect(txn, sharedEventID, func(u *models.SyncUpdate) bool {
		return includeProcessed || !u.Processed
	})
	if err != nil {
		return nil, err
	}

	result := make([]*models.SyncUpdate, len(updates))
	for i, update := range updates {
		result[i] = cloneUpdate(update)
	}
	return result, nil
}

func (r *MemorySyncUpdateRepository) CountProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	expired, err := r.processedBefore(txn, cutoff)
	if err != nil {
		return 0, err
	}
	return int64(len(expired)), nil
}

func (r *MemorySyncUpdateRepository) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	expired, err := r.processedBefore(txn, cutoff)
	if err != nil {
		return 0, err
	}

	for _, update := range expired {
		if err := txn.Delete(tblSyncUpdates, update); err != nil {
			return 0, fmt.Errorf("failed to delete sync update: %w", err)
		}
	}
	txn.Commit()

	return int64(len(expired)), nil
}

// collect returns the stored updates of a shared event accepted by keep, in
// ledger order. The returned pointers belong to memdb and must not be mutated.
func (r *MemorySyncUpdateRepository) collect(txn *memdb.Txn, sharedEventID string, keep func(*models.SyncUpdate) bool) ([]*models.SyncUpdate, error) {
	it, err := txn.Get(tblSyncUpdates, "shared_event_id", sharedEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync updates: %w", err)
	}

	var updates []*models.SyncUpdate
	for raw := it.Next(); raw != nil; raw = it.Next() {
		update := raw.(*models.SyncUpdate)
		if keep(update) {
			updates = append(updates, update)
		}
	}

	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].Less(updates[j])
	})
	return updates, nil
}

func (r *MemorySyncUpdateRepository) processedBefore(txn *memdb.Txn, cutoff time.Time) ([]*models.SyncUpdate, error) {
	it, err := txn.Get(tblSyncUpdates, "processed", true)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed sync updates: %w", err)
	}

	var expired []*models.SyncUpdate
	for raw := it.Next(); raw != nil; raw = it.Next() {
		update := raw.(*models.SyncUpdate)
		if update.ProcessedAt != nil && update.ProcessedAt.Before(cutoff) {
			expired = append(expired, update)
		}
	}
	return expired, nil
}

func cloneUpdate(update *models.SyncUpdate) *models.SyncUpdate {
	clone := *update
	if update.Data != nil {
		clone.Data = append(json.RawMessage(nil), update.Data...)
	}
	if update.ProcessedAt != nil {
		processedAt := *update.ProcessedAt
		clone.ProcessedAt = &processedAt
	}
	return &clone
}
