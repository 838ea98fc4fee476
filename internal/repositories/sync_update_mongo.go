package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/prudhvinik1/weddingsync/internal/database"
	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/models"
)

const (
	// ColSyncUpdates holds the ledger documents.
	ColSyncUpdates = "sync_updates"
	// ColCounters holds named monotonic counters.
	ColCounters = "counters"

	syncUpdateSeqKey = "sync_updates"
)

var syncUpdateIndexes = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "shared_event_id", Value: int32(1)},
			{Key: "processed", Value: int32(1)},
			{Key: "timestamp", Value: int32(1)},
			{Key: "seq", Value: int32(1)},
		},
	},
	{
		Keys: bson.D{{Key: "claim_id", Value: int32(1)}},
		Options: options.Index().SetPartialFilterExpression(bson.M{
			"claim_id": bson.M{"$exists": true},
		}),
	},
	{
		Keys: bson.D{
			{Key: "processed", Value: int32(1)},
			{Key: "processed_at", Value: int32(1)},
		},
	},
}

type syncUpdateDocument struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	SharedEventID string        `bson:"shared_event_id"`
	UserID        string        `bson:"user_id"`
	Type          string        `bson:"type"`
	Action        string        `bson:"action"`
	Data          string        `bson:"data"`
	Timestamp     int64         `bson:"timestamp"`
	Seq           int64         `bson:"seq"`
	Processed     bool          `bson:"processed"`
	ClaimID       string        `bson:"claim_id,omitempty"`
	CreatedAt     time.Time     `bson:"created_at"`
	ProcessedAt   *time.Time    `bson:"processed_at,omitempty"`
}

// MongoSyncUpdateRepository stores the ledger in a MongoDB collection.
type MongoSyncUpdateRepository struct {
	db *mongo.Database
}

// NewMongoSyncUpdateRepository ensures the ledger indexes exist (once per
// process and database, through registry) and returns the repository.
func NewMongoSyncUpdateRepository(ctx context.Context, db *mongo.Database, registry *database.Registry) (*MongoSyncUpdateRepository, error) {
	name := fmt.Sprintf("mongo/%s/%s", db.Name(), ColSyncUpdates)
	err := registry.Ensure(ctx, name, func(ctx context.Context) error {
		if _, err := db.Collection(ColSyncUpdates).Indexes().CreateMany(ctx, syncUpdateIndexes); err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &MongoSyncUpdateRepository{db: db}, nil
}

func (r *MongoSyncUpdateRepository) Insert(ctx context.Context, update *models.SyncUpdate) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return err
	}

	doc := syncUpdateDocument{
		SharedEventID: update.SharedEventID,
		UserID:        update.UserID,
		Type:          string(update.Type),
		Action:        string(update.Action),
		Data:          encodePayload(update.Data),
		Timestamp:     update.Timestamp,
		Seq:           seq,
		Processed:     false,
		CreatedAt:     update.CreatedAt,
	}

	result, err := r.collection().InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert sync update: %w", err)
	}

	update.ID = result.InsertedID.(bson.ObjectID).Hex()
	update.Seq = seq
	update.Processed = false
	return nil
}

// ClaimPending flips pending documents one at a time with a conditional
// FindOneAndUpdate, so every document it marks processed is the one it returns.
// All documents won by one call share a claim id.
func (r *MongoSyncUpdateRepository) ClaimPending(ctx context.Context, filter models.DrainFilter, now time.Time) ([]*models.SyncUpdate, error) {
	query := bson.M{
		"shared_event_id": filter.SharedEventID,
		"processed":       false,
	}
	if filter.Since != nil {
		query["timestamp"] = bson.M{"$gt": *filter.Since}
	}
	if filter.ExcludeUserID != "" {
		query["user_id"] = bson.M{"$ne": filter.ExcludeUserID}
	}

	claimID := xid.New().String()
	update := bson.M{
		"$set": bson.M{
			"processed":    true,
			"processed_at": now,
			"claim_id":     claimID,
		},
	}
	opts := options.FindOneAndUpdate().
		SetSort(ledgerOrder()).
		SetReturnDocument(options.After)

	return claimBatch(ctx, filter.Limit, func(ctx context.Context) (*models.SyncUpdate, error) {
		var doc syncUpdateDocument
		err := r.collection().FindOneAndUpdate(ctx, query, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim sync update: %w", err)
		}
		return doc.toModel(), nil
	})
}

// claimBatch calls claimNext until it reports no more pending updates or limit
// is reached (limit <= 0 means no limit). claimNext returns nil, nil when
// nothing is left. Updates already claimed are processed in the store and must
// reach the caller: a failure after the first claim ends the batch early.
func claimBatch(ctx context.Context, limit int, claimNext func(ctx context.Context) (*models.SyncUpdate, error)) ([]*models.SyncUpdate, error) {
	claimed := []*models.SyncUpdate{}
	for limit <= 0 || len(claimed) < limit {
		update, err := claimNext(ctx)
		if err != nil {
			if len(claimed) == 0 {
				return nil, err
			}
			logging.From(ctx).Warnf("ending claim early after %d updates: %v", len(claimed), err)
			break
		}
		if update == nil {
			break
		}
		claimed = append(claimed, update)
	}
	return claimed, nil
}

func (r *MongoSyncUpdateRepository) List(ctx context.Context, sharedEventID string, includeProcessed bool) ([]*models.SyncUpdate, error) {
	query := bson.M{"shared_event_id": sharedEventID}
	if !includeProcessed {
		query["processed"] = false
	}
	return r.find(ctx, query)
}

func (r *MongoSyncUpdateRepository) CountProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	count, err := r.collection().CountDocuments(ctx, processedBeforeQuery(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to count processed sync updates: %w", err)
	}
	return count, nil
}

func (r *MongoSyncUpdateRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection().DeleteMany(ctx, processedBeforeQuery(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed sync updates: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *MongoSyncUpdateRepository) find(ctx context.Context, query bson.M) ([]*models.SyncUpdate, error) {
	cursor, err := r.collection().Find(ctx, query, options.Find().SetSort(ledgerOrder()))
	if err != nil {
		return nil, fmt.Errorf("failed to query sync updates: %w", err)
	}

	var docs []syncUpdateDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read sync updates: %w", err)
	}

	updates := make([]*models.SyncUpdate, 0, len(docs))
	for _, doc := range docs {
		updates = append(updates, doc.toModel())
	}
	return updates, nil
}

// nextSeq increments the ledger counter atomically.
func (r *MongoSyncUpdateRepository) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	for attempt := 0; attempt < 2; attempt++ {
		result := r.db.Collection(ColCounters).FindOneAndUpdate(ctx,
			bson.M{"_id": syncUpdateSeqKey},
			bson.M{"$inc": bson.M{"seq": int64(1)}},
			options.FindOneAndUpdate().
				SetUpsert(true).
				SetReturnDocument(options.After),
		)

		err := result.Decode(&counter)
		if err == nil {
			return counter.Seq, nil
		}
		// Two first-ever upserts can race on the counter _id; the loser retries
		// as a plain increment.
		if !mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("failed to allocate sync update sequence: %w", err)
		}
	}

	return 0, errors.New("failed to allocate sync update sequence: counter upsert conflict")
}

func (r *MongoSyncUpdateRepository) collection() *mongo.Collection {
	return r.db.Collection(ColSyncUpdates)
}

func (d syncUpdateDocument) toModel() *models.SyncUpdate {
	return &models.SyncUpdate{
		ID:            d.ID.Hex(),
		SharedEventID: d.SharedEventID,
		UserID:        d.UserID,
		Type:          models.UpdateType(d.Type),
		Action:        models.UpdateAction(d.Action),
		Data:          decodePayload(d.Data),
		Timestamp:     d.Timestamp,
		Seq:           d.Seq,
		Processed:     d.Processed,
		CreatedAt:     d.CreatedAt,
		ProcessedAt:   d.ProcessedAt,
	}
}

func ledgerOrder() bson.D {
	return bson.D{
		{Key: "timestamp", Value: int32(1)},
		{Key: "seq", Value: int32(1)},
	}
}

func processedBeforeQuery(cutoff time.Time) bson.M {
	return bson.M{
		"processed":    true,
		"processed_at": bson.M{"$lt": cutoff},
	}
}

// encodePayload keeps the exact JSON text the client sent.
func encodePayload(data json.RawMessage) string {
	if len(data) == 0 {
		return "null"
	}
	return string(data)
}

func decodePayload(data string) json.RawMessage {
	if data == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}
