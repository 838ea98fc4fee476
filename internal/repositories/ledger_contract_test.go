package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/weddingsync/internal/database"
	"github.com/prudhvinik1/weddingsync/internal/models"
)

// runSyncUpdateRepositoryContract exercises behaviour every ledger store must share.
func runSyncUpdateRepositoryContract(t *testing.T, newRepo func(t *testing.T) SyncUpdateRepository) {
	base := time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC)

	t.Run("insert assigns id and seq", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		update := newTestUpdate(eventID, "U1", 1000, `{"name":"Alice"}`)
		require.NoError(t, repo.Insert(ctx, update))

		assert.NotEmpty(t, update.ID)
		assert.Positive(t, update.Seq)
		assert.False(t, update.Processed)

		listed, err := repo.List(ctx, eventID, false)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, update.ID, listed[0].ID)
		assert.JSONEq(t, `{"name":"Alice"}`, string(listed[0].Data))
	})

	t.Run("claim returns ledger order and marks processed", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		late := newTestUpdate(eventID, "U1", 3000, `{"n":3}`)
		tieFirst := newTestUpdate(eventID, "U1", 2000, `{"n":1}`)
		tieSecond := newTestUpdate(eventID, "U2", 2000, `{"n":2}`)
		for _, u := range []*models.SyncUpdate{late, tieFirst, tieSecond} {
			require.NoError(t, repo.Insert(ctx, u))
		}

		claimed, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID}, base)
		require.NoError(t, err)
		require.Len(t, claimed, 3)

		assert.Equal(t, []string{tieFirst.ID, tieSecond.ID, late.ID}, updateIDs(claimed))
		for _, u := range claimed {
			assert.True(t, u.Processed)
			require.NotNil(t, u.ProcessedAt)
		}

		again, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID}, base)
		require.NoError(t, err)
		assert.Empty(t, again, "processed updates must not be delivered twice")

		pending, err := repo.List(ctx, eventID, false)
		require.NoError(t, err)
		assert.Empty(t, pending)

		all, err := repo.List(ctx, eventID, true)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("claim honours since, exclude user and limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		old := newTestUpdate(eventID, "U2", 500, `null`)
		own := newTestUpdate(eventID, "U1", 1500, `null`)
		first := newTestUpdate(eventID, "U2", 1500, `null`)
		second := newTestUpdate(eventID, "U2", 1600, `null`)
		for _, u := range []*models.SyncUpdate{old, own, first, second} {
			require.NoError(t, repo.Insert(ctx, u))
		}

		since := int64(1000)
		filter := models.DrainFilter{SharedEventID: eventID, Since: &since, ExcludeUserID: "U1", Limit: 1}

		claimed, err := repo.ClaimPending(ctx, filter, base)
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID}, updateIDs(claimed))

		claimed, err = repo.ClaimPending(ctx, filter, base)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, updateIDs(claimed))

		pending, err := repo.List(ctx, eventID, false)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{old.ID, own.ID}, updateIDs(pending))
	})

	t.Run("payloads round trip unchanged", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		payloads := []string{
			`{"d":{"$date":"tomorrow"}}`,
			`{"x":{"$binary":"zz"}}`,
			`{"count":{"$numberLong":"5"}}`,
			`{"id":12345678901234567890}`,
		}
		for i, payload := range payloads {
			require.NoError(t, repo.Insert(ctx, newTestUpdate(eventID, "U1", int64(1000+i), payload)), payload)
		}

		claimed, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID}, base)
		require.NoError(t, err)
		require.Len(t, claimed, len(payloads))
		for i, payload := range payloads {
			assert.JSONEq(t, payload, string(claimed[i].Data))
			assert.NotContains(t, string(claimed[i].Data), "E+19", "large integers keep their digits")
		}
	})

	t.Run("unknown shared event yields empty batch", func(t *testing.T) {
		repo := newRepo(t)

		claimed, err := repo.ClaimPending(context.Background(), models.DrainFilter{SharedEventID: testEventID()}, base)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("concurrent claims never double deliver", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		const total = 40
		for i := 0; i < total; i++ {
			require.NoError(t, repo.Insert(ctx, newTestUpdate(eventID, "U1", int64(i), `{}`)))
		}

		const drainers = 6
		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
		)
		for d := 0; d < drainers; d++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					claimed, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID, Limit: 4}, base)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					for _, u := range claimed {
						seen[u.ID]++
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		rest, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID}, base)
		require.NoError(t, err)
		for _, u := range rest {
			seen[u.ID]++
		}

		assert.Len(t, seen, total)
		for id, count := range seen {
			assert.Equal(t, 1, count, "update %s delivered %d times", id, count)
		}
	})

	t.Run("sweep removes only old processed updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		eventID := testEventID()

		drained := newTestUpdate(eventID, "U1", 1, `{}`)
		require.NoError(t, repo.Insert(ctx, drained))
		_, err := repo.ClaimPending(ctx, models.DrainFilter{SharedEventID: eventID}, base)
		require.NoError(t, err)

		pending := newTestUpdate(eventID, "U1", 2, `{}`)
		require.NoError(t, repo.Insert(ctx, pending))

		count, err := repo.CountProcessedBefore(ctx, base)
		require.NoError(t, err)
		assert.Zero(t, count, "cutoff equal to processed time keeps the update")

		cutoff := base.Add(time.Hour)
		count, err = repo.CountProcessedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, int64(1))

		deleted, err := repo.DeleteProcessedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		all, err := repo.List(ctx, eventID, true)
		require.NoError(t, err)
		assert.Equal(t, []string{pending.ID}, updateIDs(all))
	})
}

func TestMemorySyncUpdateRepository(t *testing.T) {
	runSyncUpdateRepositoryContract(t, func(t *testing.T) SyncUpdateRepository {
		repo, err := NewMemorySyncUpdateRepository()
		require.NoError(t, err)
		return repo
	})
}

func TestMemorySyncUpdateRepository_StoredCopiesAreIsolated(t *testing.T) {
	repo, err := NewMemorySyncUpdateRepository()
	require.NoError(t, err)
	ctx := context.Background()

	update := newTestUpdate("E1", "U1", 1, `{"name":"Alice"}`)
	require.NoError(t, repo.Insert(ctx, update))
	update.Data[2] = 'X'

	listed, err := repo.List(ctx, "E1", false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.JSONEq(t, `{"name":"Alice"}`, string(listed[0].Data))
}

func TestMongoSyncUpdateRepository(t *testing.T) {
	uri := os.Getenv("WEDDINGSYNC_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WEDDINGSYNC_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := database.NewMongoClient(ctx, uri)
	require.NoError(t, err, "Failed to connect to test mongo")
	db := client.Database("weddingsync_test")
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	registry := database.NewRegistry()
	runSyncUpdateRepositoryContract(t, func(t *testing.T) SyncUpdateRepository {
		repo, err := NewMongoSyncUpdateRepository(ctx, db, registry)
		require.NoError(t, err)
		return repo
	})
	assert.Equal(t, []string{"mongo/weddingsync_test/sync_updates"}, registry.Names())
}

func TestPostgresSyncUpdateRepository(t *testing.T) {
	url := os.Getenv("WEDDINGSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WEDDINGSYNC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	registry := database.NewRegistry()
	runSyncUpdateRepositoryContract(t, func(t *testing.T) SyncUpdateRepository {
		repo, err := NewPostgresSyncUpdateRepository(ctx, pool, registry)
		require.NoError(t, err)
		return repo
	})
}

func TestPayloadEncoding(t *testing.T) {
	for _, payload := range []string{
		`{"name":"Alice","plusOne":true,"table":4}`,
		`[{"task":"book venue","done":false}]`,
		`"refresh"`,
		`null`,
		`{"d":{"$date":"tomorrow"}}`,
		`{"x":{"$binary":"zz"}}`,
		`{"count":{"$numberLong":"5"}}`,
		`{"id":12345678901234567890}`,
		`{ "spaced" : [1, 2.50] }`,
	} {
		back := decodePayload(encodePayload(json.RawMessage(payload)))
		assert.Equal(t, payload, string(back))
	}

	assert.Equal(t, "null", encodePayload(nil))
	assert.Equal(t, "null", string(decodePayload("")))
}

func TestClaimBatch(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("connection reset")

	// source hands out n updates, then failAt (if set) fails the call with that index.
	source := func(n, failAt int) func(context.Context) (*models.SyncUpdate, error) {
		calls := 0
		return func(context.Context) (*models.SyncUpdate, error) {
			calls++
			if calls == failAt {
				return nil, errDown
			}
			if calls > n {
				return nil, nil
			}
			return &models.SyncUpdate{ID: fmt.Sprintf("u%d", calls), Processed: true}, nil
		}
	}

	t.Run("drains until nothing is left", func(t *testing.T) {
		claimed, err := claimBatch(ctx, 0, source(3, 0))
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2", "u3"}, updateIDs(claimed))
	})

	t.Run("stops at the limit", func(t *testing.T) {
		claimed, err := claimBatch(ctx, 2, source(5, 0))
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, updateIDs(claimed))
	})

	t.Run("empty ledger", func(t *testing.T) {
		claimed, err := claimBatch(ctx, 10, source(0, 0))
		require.NoError(t, err)
		assert.NotNil(t, claimed)
		assert.Empty(t, claimed)
	})

	t.Run("failure before any claim is returned", func(t *testing.T) {
		claimed, err := claimBatch(ctx, 10, source(3, 1))
		assert.ErrorIs(t, err, errDown)
		assert.Nil(t, claimed)
	})

	t.Run("failure after claims keeps what was claimed", func(t *testing.T) {
		claimed, err := claimBatch(ctx, 10, source(5, 3))
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, updateIDs(claimed))
	})
}

func newTestUpdate(eventID, userID string, timestamp int64, data string) *models.SyncUpdate {
	return &models.SyncUpdate{
		SharedEventID: eventID,
		UserID:        userID,
		Type:          models.UpdateGuests,
		Action:        models.ActionAdd,
		Data:          json.RawMessage(data),
		Timestamp:     timestamp,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testEventID() string {
	return fmt.Sprintf("event-%s", uuid.New().String())
}

func updateIDs(updates []*models.SyncUpdate) []string {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	return ids
}
