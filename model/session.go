package model

import "time"

// Session is the license record for an account. There is exactly one document
// per account; whoever is named in DeviceID is the authorized device.
// Invariants: ForceClosed implies !Active; Active implies DeviceID != "";
// LastActiveAt never moves backwards.
type Session struct {
	AccountID    string    `bson:"_id" json:"account_id"`
	DeviceID     string    `bson:"device_id" json:"device_id"`
	Active       bool      `bson:"active" json:"active"`
	ForceClosed  bool      `bson:"force_closed" json:"force_closed"`
	LastActiveAt time.Time `bson:"last_active_at" json:"last_active_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	DeviceInfo   string    `bson:"device_info,omitempty" json:"device_info,omitempty"`
}

// Status is the liveness classification of a session record.
type Status string

const (
	StatusValid       Status = "valid"
	StatusExpired     Status = "expired"
	StatusForceClosed Status = "force_closed"
	StatusTransferred Status = "transferred"
	StatusInvalid     Status = "invalid"
	// StatusUnknown means no record exists for the account.
	StatusUnknown Status = "unknown"
)

// Classify reports the liveness state of a record at a given instant.
// Priority order is fixed: force-closed beats expiry, expiry beats valid.
// The caller supplies now, so classification has no wall-clock dependence.
func Classify(s *Session, now time.Time, ttl time.Duration) Status {
	if s == nil {
		return StatusUnknown
	}
	if s.ForceClosed {
		return StatusForceClosed
	}
	if !s.Active || now.Sub(s.LastActiveAt) > ttl {
		return StatusExpired
	}
	return StatusValid
}
