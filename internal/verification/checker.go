package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCode = errors.New("invalid verification code")
	ErrExpiredCode = errors.New("verification code expired")
	ErrMaxAttempts = errors.New("maximum verification attempts exceeded")
)

// Checker runs the shared verification algorithm against one namespace.
type Checker struct {
	store       Store
	clock       Clock
	expiry      time.Duration
	maxAttempts int
}

type CheckerOption func(*Checker)

func WithClock(clock Clock) CheckerOption {
	return func(c *Checker) { c.clock = clock }
}

func WithExpiry(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.expiry = d
		}
	}
}

func WithMaxAttempts(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func NewChecker(store Store, opts ...CheckerOption) *Checker {
	c := &Checker{
		store:       store,
		clock:       time.Now,
		expiry:      CodeExpiry,
		maxAttempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates code for key. A nil return means the caller may perform
// its success action and must then call Consume.
func (c *Checker) Check(ctx context.Context, key, code string) error {
	record, err := c.store.Find(ctx, key)
	if err != nil {
		return fmt.Errorf("find verification code: %w", err)
	}
	if record == nil {
		return ErrInvalidCode
	}

	if c.clock().Sub(record.CreatedAt) > c.expiry {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete expired verification code: %w", err)
		}
		return ErrExpiredCode
	}

	// Locked records stay until a new code is requested.
	if record.Attempts >= c.maxAttempts {
		return ErrMaxAttempts
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(record.Code)) != 1 {
		if err := c.store.IncrementAttempts(ctx, key); err != nil {
			return fmt.Errorf("increment verification attempts: %w", err)
		}
		return ErrInvalidCode
	}
	return nil
}

// Consume removes the record after a successful check.
func (c *Checker) Consume(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Issue replaces any existing record for key with a freshly generated code.
func (c *Checker) Issue(ctx context.Context, key string) (string, error) {
	code, err := Generate()
	if err != nil {
		return "", err
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("delete previous verification code: %w", err)
	}
	if err := c.store.Store(ctx, key, code); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}
