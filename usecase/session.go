package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"main/model"
	"main/utils"
)

// Validation errors are returned before any store access.
var (
	ErrInvalidAccount = errors.New("invalid account id")
	ErrInvalidDevice  = errors.New("invalid device id")
)

// errAbortUpdate is an internal sentinel: the update callback uses it to back
// out of an atomic update without writing anything.
var errAbortUpdate = errors.New("abort update")

// SessionStore is the durable-state contract the manager runs on. Get returns
// (nil, nil) for an absent record. AtomicUpdate serializes read-modify-write
// per account; the callback receives the current record (nil when absent) and
// returns the record to persist.
type SessionStore interface {
	Get(ctx context.Context, accountID string) (*model.Session, error)
	AtomicUpdate(ctx context.Context, accountID string, fn func(*model.Session) (*model.Session, error)) (*model.Session, error)
	Touch(ctx context.Context, accountID string, now time.Time) error
	Delete(ctx context.Context, accountID string) error
}

// Clock supplies the current time so expiry behavior is testable without
// wall-clock flakiness.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// LoginOutcome describes what a login did to the account's session.
type LoginOutcome string

const (
	OutcomeCreated  LoginOutcome = "created"
	OutcomeRenewed  LoginOutcome = "renewed"
	OutcomeTakeover LoginOutcome = "takeover"
)

// LoginResult reports the outcome and, on a takeover, which device was
// displaced.
type LoginResult struct {
	Outcome          LoginOutcome
	PreviousDeviceID string
}

// HeartbeatResult is the manager's answer to a liveness ping.
type HeartbeatResult string

const (
	HeartbeatOK      HeartbeatResult = "ok"
	HeartbeatExpired HeartbeatResult = "expired"
	HeartbeatInvalid HeartbeatResult = "invalid"
)

// SessionService is the session-exclusivity state machine. Per account:
// NO_SESSION -> ACTIVE(device) -> {ACTIVE(device), ACTIVE(other), CLOSED}.
// The single record per account is the sole source of truth for which device
// holds the license; overwriting it is what revokes the previous device.
type SessionService struct {
	Store SessionStore
	TTL   time.Duration
	Clock Clock
}

func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{
		Store: store,
		TTL:   ttl,
		Clock: realClock{},
	}
}

// Login authorizes deviceID for the account, displacing whatever device held
// it before. All three branches (create, renew, takeover) run inside one
// atomic update so racing logins cannot lose writes; retrying an identical
// login converges to the same end state. A failed write surfaces as an error,
// never as a silently assumed takeover.
func (s *SessionService) Login(ctx context.Context, accountID, deviceID, deviceInfo string) (LoginResult, error) {
	if accountID == "" {
		return LoginResult{}, ErrInvalidAccount
	}
	if !utils.ValidateDeviceID(deviceID) {
		return LoginResult{}, ErrInvalidDevice
	}

	var result LoginResult
	now := s.Clock.Now()

	_, err := s.Store.AtomicUpdate(ctx, accountID, func(current *model.Session) (*model.Session, error) {
		switch {
		case current == nil:
			result = LoginResult{Outcome: OutcomeCreated}
			return &model.Session{
				AccountID:    accountID,
				DeviceID:     deviceID,
				Active:       true,
				ForceClosed:  false,
				LastActiveAt: now,
				CreatedAt:    now,
				DeviceInfo:   deviceInfo,
			}, nil

		case current.DeviceID == "":
			// Logged-out record: nobody holds the account, so this is a
			// fresh grant, not a takeover.
			result = LoginResult{Outcome: OutcomeCreated}
			current.DeviceID = deviceID
			current.Active = true
			current.ForceClosed = false
			current.LastActiveAt = laterOf(current.LastActiveAt, now)
			current.DeviceInfo = deviceInfo
			return current, nil

		case current.DeviceID == deviceID:
			// Same-device re-login: refresh liveness and clear any stale
			// force-close left over from an earlier displacement.
			result = LoginResult{Outcome: OutcomeRenewed}
			current.Active = true
			current.ForceClosed = false
			current.LastActiveAt = laterOf(current.LastActiveAt, now)
			if deviceInfo != "" {
				current.DeviceInfo = deviceInfo
			}
			return current, nil

		default:
			// Takeover. The record is the only authority on who holds the
			// account, so rewriting device_id is itself the revocation of the
			// previous device.
			result = LoginResult{Outcome: OutcomeTakeover, PreviousDeviceID: current.DeviceID}
			current.DeviceID = deviceID
			current.Active = true
			current.ForceClosed = false
			current.LastActiveAt = laterOf(current.LastActiveAt, now)
			current.DeviceInfo = deviceInfo
			return current, nil
		}
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("login for %s not confirmed: %w", accountID, err)
	}

	if result.Outcome == OutcomeTakeover {
		slog.Info("session takeover",
			"account", accountID,
			"displaced_device", result.PreviousDeviceID,
			"new_device", deviceID,
		)
	}

	return result, nil
}

// CheckSession classifies the caller's session. Priority is fixed:
// force-closed beats expired beats transferred beats valid. A valid check
// counts as activity: it advances last_active_at (best effort; a failed touch
// is logged but never turns a valid answer into an error).
func (s *SessionService) CheckSession(ctx context.Context, accountID, deviceID string) (model.Status, error) {
	if accountID == "" {
		return "", ErrInvalidAccount
	}
	if !utils.ValidateDeviceID(deviceID) {
		return "", ErrInvalidDevice
	}

	session, err := s.Store.Get(ctx, accountID)
	if err != nil {
		return "", err
	}

	now := s.Clock.Now()
	switch model.Classify(session, now, s.TTL) {
	case model.StatusUnknown:
		return model.StatusInvalid, nil
	case model.StatusForceClosed:
		return model.StatusForceClosed, nil
	case model.StatusExpired:
		return model.StatusExpired, nil
	}

	// Live record held by someone else: the caller was displaced, which is
	// worth distinguishing from a plain timeout for client messaging.
	if session.DeviceID != deviceID {
		return model.StatusTransferred, nil
	}

	if err := s.Store.Touch(ctx, accountID, now); err != nil {
		slog.Warn("liveness touch failed on check", "account", accountID, "error", err)
	}

	return model.StatusValid, nil
}

// Heartbeat renews liveness for the authorized device. A displaced or expired
// device gets HeartbeatExpired and mutates nothing; its pings must never
// resurrect or extend a session it no longer holds.
func (s *SessionService) Heartbeat(ctx context.Context, accountID, deviceID string) (HeartbeatResult, error) {
	if accountID == "" {
		return "", ErrInvalidAccount
	}
	if !utils.ValidateDeviceID(deviceID) {
		return "", ErrInvalidDevice
	}

	var result HeartbeatResult
	now := s.Clock.Now()

	_, err := s.Store.AtomicUpdate(ctx, accountID, func(current *model.Session) (*model.Session, error) {
		if current == nil {
			result = HeartbeatInvalid
			return nil, errAbortUpdate
		}

		status := model.Classify(current, now, s.TTL)
		if current.DeviceID != deviceID || status != model.StatusValid {
			result = HeartbeatExpired
			return nil, errAbortUpdate
		}

		result = HeartbeatOK
		current.LastActiveAt = laterOf(current.LastActiveAt, now)
		return current, nil
	})
	if err != nil && !errors.Is(err, errAbortUpdate) {
		return "", fmt.Errorf("heartbeat for %s not confirmed: %w", accountID, err)
	}

	return result, nil
}

// Logout closes the account's session unconditionally. It is idempotent:
// closing an absent or already-closed session succeeds. The record is kept
// (created_at survives); only active and device_id are cleared.
func (s *SessionService) Logout(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrInvalidAccount
	}

	_, err := s.Store.AtomicUpdate(ctx, accountID, func(current *model.Session) (*model.Session, error) {
		if current == nil {
			return nil, errAbortUpdate
		}
		current.Active = false
		current.DeviceID = ""
		return current, nil
	})
	if err != nil && !errors.Is(err, errAbortUpdate) {
		return fmt.Errorf("logout for %s not confirmed: %w", accountID, err)
	}

	return nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
