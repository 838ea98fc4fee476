package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/models"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 60 * time.Second // Presence expires after 60 seconds without heartbeat
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// SetPresence records a heartbeat for a partner in a shared event; LastSeen is
// set by the caller. Clients should call this every 30 seconds to stay online.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, presenceKey(presence.SharedEventID, presence.UserID), data, presenceTTL)
	pipe.SAdd(ctx, presenceMembersKey(presence.SharedEventID), presence.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return nil
}

// ListPresence returns the partners currently online in a shared event.
// Members whose heartbeat expired are dropped from the index.
func (r *RedisPresenceRepository) ListPresence(ctx context.Context, sharedEventID string) ([]models.Presence, error) {
	membersKey := presenceMembersKey(sharedEventID)
	userIDs, err := r.client.SMembers(ctx, membersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence members: %w", err)
	}
	if len(userIDs) == 0 {
		return []models.Presence{}, nil
	}
	sort.Strings(userIDs)

	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = presenceKey(sharedEventID, userID)
	}

	// MGet retrieves multiple keys in one round trip
	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	presences := []models.Presence{}
	var expired []interface{}

	for i, result := range results {
		data, ok := result.(string)
		if result == nil || !ok {
			expired = append(expired, userIDs[i])
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			logging.From(ctx).Warnf("dropping unreadable presence for %s: %v", userIDs[i], err)
			expired = append(expired, userIDs[i])
			continue
		}
		presences = append(presences, presence)
	}

	if len(expired) > 0 {
		if err := r.client.SRem(ctx, membersKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired presence: %w", err)
		}
	}

	return presences, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, sharedEventID, userID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKey(sharedEventID, userID))
	pipe.SRem(ctx, presenceMembersKey(sharedEventID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

func presenceKey(sharedEventID, userID string) string {
	return presenceKeyPrefix + sharedEventID + ":" + userID
}

func presenceMembersKey(sharedEventID string) string {
	return "presence_members:" + sharedEventID
}
