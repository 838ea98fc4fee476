package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/weddingsync/internal/models"
)

func TestPresenceRepository_SetAndList(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)
	ctx := context.Background()

	defer cleanupTestKeys(t, client, ctx)

	seen := time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC)
	for _, userID := range []string{"U2", "U1"} {
		err := repo.SetPresence(ctx, &models.Presence{
			SharedEventID: "E1",
			UserID:        userID,
			Status:        string(models.StatusOnline),
			LastSeen:      seen,
		})
		require.NoError(t, err)
	}

	presences, err := repo.ListPresence(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, presences, 2)
	assert.Equal(t, "U1", presences[0].UserID)
	assert.Equal(t, "U2", presences[1].UserID)
	assert.True(t, seen.Equal(presences[0].LastSeen), "last seen is stored as given")

	other, err := repo.ListPresence(ctx, "E2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPresenceRepository_ExpiredMembersAreDropped(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)
	ctx := context.Background()

	defer cleanupTestKeys(t, client, ctx)

	require.NoError(t, repo.SetPresence(ctx, &models.Presence{SharedEventID: "E1", UserID: "U1", Status: "online"}))
	require.NoError(t, repo.SetPresence(ctx, &models.Presence{SharedEventID: "E1", UserID: "U2", Status: "away"}))

	// Simulate a missed heartbeat by expiring U2 early.
	require.NoError(t, client.Del(ctx, presenceKey("E1", "U2")).Err())

	presences, err := repo.ListPresence(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, presences, 1)
	assert.Equal(t, "U1", presences[0].UserID)

	members, err := client.SMembers(ctx, presenceMembersKey("E1")).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"U1"}, members)

	require.NoError(t, repo.DeletePresence(ctx, "E1", "U1"))
	presences, err = repo.ListPresence(ctx, "E1")
	require.NoError(t, err)
	assert.Empty(t, presences)
}
