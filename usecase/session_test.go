package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"main/model"
	"main/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SessionStore for exercising the state machine
// without a database. It honors the same contract as the mongo-backed repo:
// (nil, nil) for absent records, per-store serialization, monotonic Touch.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	failing  bool
	touches  int
	writes   int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*model.Session)}
}

func (m *memStore) Get(_ context.Context, accountID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, fmt.Errorf("%w: injected failure", repository.ErrStoreUnavailable)
	}
	s, ok := m.sessions[accountID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) AtomicUpdate(_ context.Context, accountID string, fn func(*model.Session) (*model.Session, error)) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, fmt.Errorf("%w: injected failure", repository.ErrStoreUnavailable)
	}

	var current *model.Session
	if s, ok := m.sessions[accountID]; ok {
		cp := *s
		current = &cp
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	cp := *updated
	m.sessions[accountID] = &cp
	m.writes++
	return updated, nil
}

func (m *memStore) Touch(_ context.Context, accountID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("%w: injected failure", repository.ErrStoreUnavailable)
	}
	m.touches++
	if s, ok := m.sessions[accountID]; ok && now.After(s.LastActiveAt) {
		s.LastActiveAt = now
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("%w: injected failure", repository.ErrStoreUnavailable)
	}
	delete(m.sessions, accountID)
	return nil
}

func (m *memStore) snapshot(accountID string) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[accountID]; ok {
		cp := *s
		return &cp
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

const (
	account = "u@x.com"
	dev1    = "DEV-AAA111"
	dev2    = "DEV-BBB222"
)

func newTestService() (*SessionService, *memStore, *fakeClock) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewSessionService(store, 45*time.Minute)
	svc.Clock = clock
	return svc, store, clock
}

func TestLoginCreatesSession(t *testing.T) {
	svc, store, clock := newTestService()

	result, err := svc.Login(context.Background(), account, dev1, "Chrome on Windows (Desktop)")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Empty(t, result.PreviousDeviceID)

	s := store.snapshot(account)
	require.NotNil(t, s)
	assert.Equal(t, dev1, s.DeviceID)
	assert.True(t, s.Active)
	assert.False(t, s.ForceClosed)
	assert.Equal(t, clock.Now(), s.LastActiveAt)
	assert.Equal(t, clock.Now(), s.CreatedAt)

	status, err := svc.CheckSession(context.Background(), account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestLoginSameDeviceRenews(t *testing.T) {
	svc, store, clock := newTestService()

	_, err := svc.Login(context.Background(), account, dev1, "")
	require.NoError(t, err)
	created := store.snapshot(account).CreatedAt

	clock.advance(10 * time.Minute)

	result, err := svc.Login(context.Background(), account, dev1, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, result.Outcome, "same-device re-login must not report a takeover")

	s := store.snapshot(account)
	assert.Equal(t, clock.Now(), s.LastActiveAt)
	assert.Equal(t, created, s.CreatedAt, "created_at is set once")

	status, err := svc.CheckSession(context.Background(), account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestLoginTakeoverDisplacesPreviousDevice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	result, err := svc.Login(ctx, account, dev2, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTakeover, result.Outcome)
	assert.Equal(t, dev1, result.PreviousDeviceID)

	// Exclusivity: the displaced device never sees valid again.
	status, err := svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTransferred, status)

	status, err = svc.CheckSession(ctx, account, dev2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestLoginAfterForceCloseClearsFlag(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)
	_, err = svc.Login(ctx, account, dev2, "")
	require.NoError(t, err)

	// dev1 logs back in: the takeover of the takeover.
	result, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTakeover, result.Outcome)
	assert.Equal(t, dev2, result.PreviousDeviceID)

	s := store.snapshot(account)
	assert.True(t, s.Active)
	assert.False(t, s.ForceClosed)
}

func TestCheckSessionStatuses(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()

	status, err := svc.CheckSession(ctx, "ghost@x.com", dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, status, "no record means invalid, not an error")

	_, err = svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	clock.advance(45*time.Minute + time.Second)
	status, err = svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)

	// Expiry wins regardless of device match.
	status, err = svc.CheckSession(ctx, account, dev2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)
}

func TestCheckSessionRefreshesLiveness(t *testing.T) {
	svc, store, clock := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	clock.advance(30 * time.Minute)
	status, err := svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
	assert.Equal(t, clock.Now(), store.snapshot(account).LastActiveAt,
		"a valid check counts as activity")

	// Another 30 minutes of polling silence would have expired the session
	// without the refresh above.
	clock.advance(30 * time.Minute)
	status, err = svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestCheckSessionDoesNotTouchNonValidOutcomes(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)
	_, err = svc.Login(ctx, account, dev2, "")
	require.NoError(t, err)

	before := store.touches
	_, err = svc.CheckSession(ctx, account, dev1) // transferred
	require.NoError(t, err)
	assert.Equal(t, before, store.touches, "only a valid check refreshes liveness")
}

func TestHeartbeatRenewsAuthorizedDevice(t *testing.T) {
	svc, store, clock := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	clock.advance(20 * time.Minute)
	result, err := svc.Heartbeat(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, HeartbeatOK, result)
	assert.Equal(t, clock.Now(), store.snapshot(account).LastActiveAt)
}

func TestHeartbeatRejectsDisplacedDevice(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)
	_, err = svc.Login(ctx, account, dev2, "")
	require.NoError(t, err)

	before := *store.snapshot(account)
	writesBefore := store.writes

	result, err := svc.Heartbeat(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, HeartbeatExpired, result)

	after := store.snapshot(account)
	assert.Equal(t, before, *after, "a displaced heartbeat mutates nothing")
	assert.Equal(t, writesBefore, store.writes)

	// dev2's session is untouched and still valid.
	status, err := svc.CheckSession(ctx, account, dev2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestHeartbeatOutcomes(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()

	result, err := svc.Heartbeat(ctx, "ghost@x.com", dev1)
	require.NoError(t, err)
	assert.Equal(t, HeartbeatInvalid, result)

	_, err = svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	clock.advance(46 * time.Minute)
	result, err = svc.Heartbeat(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, HeartbeatExpired, result, "an expired session cannot be resurrected by a heartbeat")
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, "ghost@x.com"), "logout of a nonexistent account succeeds")

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, account))
	s := store.snapshot(account)
	assert.False(t, s.Active)
	assert.Empty(t, s.DeviceID)

	require.NoError(t, svc.Logout(ctx, account), "repeat logout succeeds")

	status, err := svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)
}

func TestLoginAfterLogoutIsFreshGrant(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, account, dev1, "")
	require.NoError(t, err)
	created := store.snapshot(account).CreatedAt
	require.NoError(t, svc.Logout(ctx, account))

	result, err := svc.Login(ctx, account, dev2, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome, "logging into a closed record displaces nobody")
	assert.Empty(t, result.PreviousDeviceID)
	assert.Equal(t, created, store.snapshot(account).CreatedAt)

	status, err := svc.CheckSession(ctx, account, dev2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValid, status)
}

func TestConcurrentLoginsConvergeToOneDevice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, dev := range []string{dev1, dev2} {
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			_, err := svc.Login(ctx, account, d, "")
			assert.NoError(t, err)
		}(dev)
	}
	wg.Wait()

	s1, err := svc.CheckSession(ctx, account, dev1)
	require.NoError(t, err)
	s2, err := svc.CheckSession(ctx, account, dev2)
	require.NoError(t, err)

	valid := 0
	for _, s := range []model.Status{s1, s2} {
		if s == model.StatusValid {
			valid++
		}
	}
	assert.Equal(t, 1, valid, "exactly one device holds the license after racing logins")
}

func TestLoginStoreFailurePropagates(t *testing.T) {
	svc, store, _ := newTestService()
	store.failing = true

	_, err := svc.Login(context.Background(), account, dev1, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrStoreUnavailable),
		"a failed takeover write must be visible to the caller, never dropped")
}

func TestValidationNeverTouchesStore(t *testing.T) {
	svc, store, _ := newTestService()
	store.failing = true // any store access would error
	ctx := context.Background()

	_, err := svc.Login(ctx, "", dev1, "")
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = svc.Login(ctx, account, "xx", "")
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = svc.CheckSession(ctx, account, "")
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = svc.Heartbeat(ctx, "", dev1)
	assert.ErrorIs(t, err, ErrInvalidAccount)

	assert.ErrorIs(t, svc.Logout(ctx, ""), ErrInvalidAccount)
}
