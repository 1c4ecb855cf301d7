package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoClient is the process-wide MongoDB client, set by InitMongoClient.
var MongoClient *mongo.Client

type MongoOptions struct {
	URI             string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// InitMongoClient connects to MongoDB and verifies the connection with a
// retried ping. Cold starts on managed hosting routinely race the database
// container, hence the retry instead of a single attempt.
func InitMongoClient(opts MongoOptions) error {
	if opts.URI == "" {
		return fmt.Errorf("mongo URI is not set")
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(opts.MinPoolSize).
		SetMaxConnIdleTime(opts.MaxConnIdleTime)

	client, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Ping(ctx, readpref.Primary())
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	MongoClient = client
	return nil
}

// PingMongo reports whether the durable store is reachable right now.
func PingMongo(ctx context.Context) error {
	if MongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return MongoClient.Ping(ctx, readpref.Primary())
}
