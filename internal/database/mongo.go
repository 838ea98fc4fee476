package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/prudhvinik1/weddingsync/internal/logging"
)

const (
	MongoConnectTimeout = 10 * time.Second
	MongoPingTimeout    = 5 * time.Second
	MongoMaxPoolSize    = 50
)

// NewMongoClient connects to MongoDB and verifies the primary is reachable.
// The caller owns the client and must Disconnect it on shutdown.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(MongoConnectTimeout).
		SetMaxPoolSize(MongoMaxPoolSize)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, MongoPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging mongo: %w", err)
	}

	logging.DefaultLogger().Info("Mongo client created successfully")

	return client, nil
}
