package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prudhvinik1/weddingsync/internal/database"
	"github.com/prudhvinik1/weddingsync/internal/models"
)

const syncUpdatesDDL = `
CREATE TABLE IF NOT EXISTS sync_updates (
	id              UUID PRIMARY KEY,
	seq             BIGSERIAL NOT NULL,
	shared_event_id TEXT NOT NULL CHECK (shared_event_id <> ''),
	user_id         TEXT NOT NULL CHECK (user_id <> ''),
	type            TEXT NOT NULL CHECK (type <> ''),
	action          TEXT NOT NULL CHECK (action <> ''),
	data            JSONB NOT NULL DEFAULT 'null',
	timestamp_ms    BIGINT NOT NULL,
	processed       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sync_updates_pending_idx
	ON sync_updates (shared_event_id, processed, timestamp_ms, seq);
CREATE INDEX IF NOT EXISTS sync_updates_processed_at_idx
	ON sync_updates (processed_at) WHERE processed;
`

const syncUpdateColumns = `id, seq, shared_event_id, user_id, type, action, data, timestamp_ms, processed, created_at, processed_at`

type PostgresSyncUpdateRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncUpdateRepository(ctx context.Context, pool *pgxpool.Pool, registry *database.Registry) (*PostgresSyncUpdateRepository, error) {
	err := registry.Ensure(ctx, "postgres/sync_updates", func(ctx context.Context) error {
		_, err := pool.Exec(ctx, syncUpdatesDDL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PostgresSyncUpdateRepository{pool: pool}, nil
}

func (r *PostgresSyncUpdateRepository) Insert(ctx context.Context, update *models.SyncUpdate) error {
	query := `INSERT INTO sync_updates (id, shared_event_id, user_id, type, action, data, timestamp_ms, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
	          RETURNING seq`

	id := uuid.New()
	data := update.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	var seq int64
	err := r.pool.QueryRow(ctx, query,
		id,
		update.SharedEventID,
		update.UserID,
		string(update.Type),
		string(update.Action),
		string(data),
		update.Timestamp,
		update.CreatedAt,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to insert sync update: %w", err)
	}

	update.ID = id.String()
	update.Seq = seq
	update.Processed = false
	return nil
}

// ClaimPending selects and flips pending rows in one statement. Rows locked by
// a concurrent drain are skipped, and the processed = FALSE guard on the
// UPDATE keeps a row from being claimed twice.
func (r *PostgresSyncUpdateRepository) ClaimPending(ctx context.Context, filter models.DrainFilter, now time.Time) ([]*models.SyncUpdate, error) {
	query := `WITH picked AS (
	              SELECT id FROM sync_updates
	              WHERE shared_event_id = $1
	                AND processed = FALSE
	                AND ($2::BIGINT IS NULL OR timestamp_ms > $2)
	                AND ($3 = '' OR user_id <> $3)
	              ORDER BY timestamp_ms ASC, seq ASC
	              LIMIT $4::BIGINT
	              FOR UPDATE SKIP LOCKED
	          )
	          UPDATE sync_updates AS s
	          SET processed = TRUE, processed_at = $5
	          FROM picked
	          WHERE s.id = picked.id AND s.processed = FALSE
	          RETURNING s.id, s.seq, s.shared_event_id, s.user_id, s.type, s.action, s.data,
	                    s.timestamp_ms, s.processed, s.created_at, s.processed_at`

	var limit *int64
	if filter.Limit > 0 {
		l := int64(filter.Limit)
		limit = &l
	}

	updates, err := r.query(ctx, query, filter.SharedEventID, filter.Since, filter.ExcludeUserID, limit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim sync updates: %w", err)
	}

	// RETURNING carries no order.
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].Less(updates[j])
	})
	return updates, nil
}

func (r *PostgresSyncUpdateRepository) List(ctx context.Context, sharedEventID string, includeProcessed bool) ([]*models.SyncUpdate, error) {
	query := `SELECT ` + syncUpdateColumns + `
	          FROM sync_updates
	          WHERE shared_event_id = $1 AND ($2 OR processed = FALSE)
	          ORDER BY timestamp_ms ASC, seq ASC`

	updates, err := r.query(ctx, query, sharedEventID, includeProcessed)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync updates: %w", err)
	}
	return updates, nil
}

func (r *PostgresSyncUpdateRepository) CountProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM sync_updates WHERE processed AND processed_at < $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed sync updates: %w", err)
	}
	return count, nil
}

func (r *PostgresSyncUpdateRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_updates WHERE processed AND processed_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed sync updates: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresSyncUpdateRepository) query(ctx context.Context, query string, args ...any) ([]*models.SyncUpdate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates := []*models.SyncUpdate{}
	for rows.Next() {
		var (
			update models.SyncUpdate
			id     uuid.UUID
			typ    string
			action string
			data   []byte
		)
		err := rows.Scan(
			&id,
			&update.Seq,
			&update.SharedEventID,
			&update.UserID,
			&typ,
			&action,
			&data,
			&update.Timestamp,
			&update.Processed,
			&update.CreatedAt,
			&update.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync update: %w", err)
		}

		update.ID = id.String()
		update.Type = models.UpdateType(typ)
		update.Action = models.UpdateAction(action)
		update.Data = json.RawMessage(data)
		updates = append(updates, &update)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync updates: %w", err)
	}

	return updates, nil
}
