package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"main/model"

	"github.com/redis/go-redis/v9"
)

// SessionCache is an advisory read cache in front of the durable store. It
// only ever serves check-session reads; every write path invalidates the
// cached record (DEL, never overwrite) so that a takeover on another server
// instance cannot leave a stale "valid" behind longer than the entry TTL.
// The durable store remains the sole source of truth.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

const cacheKeyPrefix = "license:"

// NewSessionCache connects to Redis and verifies the connection.
func NewSessionCache(redisURL string, ttl time.Duration) (*SessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SessionCache{client: client, ttl: ttl}, nil
}

// Get returns the cached record for an account, or (nil, nil) on a miss.
func (sc *SessionCache) Get(ctx context.Context, accountID string) (*model.Session, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID cannot be empty")
	}

	data, err := sc.client.Get(ctx, cacheKeyPrefix+accountID).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached session: %w", err)
	}

	return &session, nil
}

// Set caches a record read from the durable store.
func (sc *SessionCache) Set(ctx context.Context, session *model.Session) error {
	if session == nil {
		return fmt.Errorf("cannot cache nil session")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := sc.client.Set(ctx, cacheKeyPrefix+session.AccountID, data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}

	return nil
}

// Invalidate drops the cached record for an account. Called around every
// durable write so readers fall through to the store.
func (sc *SessionCache) Invalidate(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("accountID cannot be empty")
	}

	if err := sc.client.Del(ctx, cacheKeyPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached session: %w", err)
	}

	return nil
}
