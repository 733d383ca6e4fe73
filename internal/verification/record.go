package verification

import (
	"context"
	"time"
)

// Purpose selects the code namespace. Login and phone verification codes
// never share storage.
type Purpose string

const (
	PurposeLogin             Purpose = "login"
	PurposePhoneVerification Purpose = "phone_verification"
)

// Table is the storage name of the namespace.
func (p Purpose) Table() string {
	switch p {
	case PurposeLogin:
		return "login_verification_codes"
	case PurposePhoneVerification:
		return "phone_verification_codes"
	}
	return string(p) + "_codes"
}

const (
	CodeLength  = 6
	CodeExpiry  = 10 * time.Minute
	MaxAttempts = 5
)

type Record struct {
	Code      string
	Attempts  int
	CreatedAt time.Time
}

// Store holds at most one Record per identity key. Implementations must make
// IncrementAttempts atomic and must not recreate a deleted record.
type Store interface {
	Store(ctx context.Context, key, code string) error
	// Find returns nil when no record exists. Expired records are returned
	// as-is; expiry is the caller's decision.
	Find(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	IncrementAttempts(ctx context.Context, key string) error
}

// Clock returns the current time.
type Clock func() time.Time
