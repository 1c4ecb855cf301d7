package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"main/config"
	"main/middleware"
	"main/model"
	"main/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStoreUnavailable wraps any durable-store I/O failure or timeout. Callers
// must treat a mutation that returned this error as not confirmed.
var ErrStoreUnavailable = errors.New("session store unavailable")

// SessionRepo is the durable-state layer: one document per account in the
// licenses collection, keyed by email. All mutations go through AtomicUpdate,
// which serializes read-modify-write sequences per account.
type SessionRepo struct {
	collection *mongo.Collection
	cache      *services.SessionCache // nil disables the advisory cache
	opTimeout  time.Duration
	locks      accountLocks
}

func GetSessionRepo(client *mongo.Client, cfg config.MongoConfig, cache *services.SessionCache) *SessionRepo {
	return &SessionRepo{
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		cache:      cache,
		opTimeout:  cfg.OpTimeout,
	}
}

// Get returns the record for an account, or (nil, nil) when absent. Absence
// is a normal state, not an error. The advisory cache may serve the read;
// cache failures degrade to a store read.
func (r *SessionRepo) Get(ctx context.Context, accountID string) (*model.Session, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID cannot be empty")
	}

	if r.cache != nil {
		if session, err := r.cache.Get(ctx, accountID); err == nil && session != nil {
			middleware.TrackCacheOperation(true)
			return session, nil
		}
		middleware.TrackCacheOperation(false)
	}

	session, err := r.fetch(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if session != nil && r.cache != nil {
		if err := r.cache.Set(ctx, session); err != nil {
			slog.Warn("failed to cache session", "account", accountID, "error", err)
		}
	}

	return session, nil
}

// fetch reads straight from the durable store, bypassing the cache.
func (r *SessionRepo) fetch(ctx context.Context, accountID string) (*model.Session, error) {
	timer := middleware.TrackStoreOperation("find")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		middleware.TrackError("store", "fetch_failed")
		return nil, fmt.Errorf("%w: failed to fetch session for %s: %v", ErrStoreUnavailable, accountID, err)
	}

	return &session, nil
}

// AtomicUpdate runs fn inside the per-account critical section: it reads the
// current record (absent records arrive as nil), writes back whatever fn
// returns, and invalidates the cache. fn returning an error aborts without
// writing. The lock scope is exactly the read-modify-write; different
// accounts never block each other. Across server instances, concurrent
// updates resolve last-writer-wins at the store.
func (r *SessionRepo) AtomicUpdate(ctx context.Context, accountID string, fn func(*model.Session) (*model.Session, error)) (*model.Session, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID cannot be empty")
	}

	mu := r.locks.lock(accountID)
	defer mu.Unlock()

	current, err := r.fetch(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	timer := middleware.TrackStoreOperation("replace")
	defer timer.ObserveDuration()

	wctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	r.invalidate(ctx, accountID)

	_, err = r.collection.ReplaceOne(
		wctx,
		bson.M{"_id": accountID},
		updated,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		middleware.TrackError("store", "replace_failed")
		return nil, fmt.Errorf("%w: failed to write session for %s: %v", ErrStoreUnavailable, accountID, err)
	}

	r.invalidate(ctx, accountID)

	return updated, nil
}

// Touch advances last_active_at to now. $max keeps the timestamp monotonic
// even if a slower touch lands after a newer one.
func (r *SessionRepo) Touch(ctx context.Context, accountID string, now time.Time) error {
	if accountID == "" {
		return fmt.Errorf("accountID cannot be empty")
	}

	timer := middleware.TrackStoreOperation("update")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	r.invalidate(ctx, accountID)

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": accountID},
		bson.M{"$max": bson.M{"last_active_at": now}},
	)
	if err != nil {
		middleware.TrackError("store", "touch_failed")
		return fmt.Errorf("%w: failed to touch session for %s: %v", ErrStoreUnavailable, accountID, err)
	}

	return nil
}

// Delete removes the record for an account. Deleting an absent record is not
// an error.
func (r *SessionRepo) Delete(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("accountID cannot be empty")
	}

	mu := r.locks.lock(accountID)
	defer mu.Unlock()

	timer := middleware.TrackStoreOperation("delete")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	r.invalidate(ctx, accountID)

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": accountID}); err != nil {
		middleware.TrackError("store", "delete_failed")
		return fmt.Errorf("%w: failed to delete session for %s: %v", ErrStoreUnavailable, accountID, err)
	}

	return nil
}

func (r *SessionRepo) invalidate(ctx context.Context, accountID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, accountID); err != nil {
		middleware.TrackError("cache", "invalidate_failed")
		slog.Warn("failed to invalidate cached session", "account", accountID, "error", err)
	}
}
