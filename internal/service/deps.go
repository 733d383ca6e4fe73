package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

// UserRepository is the identity store the flows depend on.
type UserRepository interface {
	Create(ctx context.Context, params scylla.CreateUserParams) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByPhoneHash(ctx context.Context, phoneHash string) (*models.User, error)
	ExistsByPhoneHash(ctx context.Context, phoneHash string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	FindByUsernameExact(ctx context.Context, username string) (*models.User, error)
	MarkPhoneVerified(ctx context.Context, user *models.User, at time.Time) error
	Delete(ctx context.Context, user *models.User) error
}

// UserIndex is the search projection of users.
type UserIndex interface {
	IndexUser(ctx context.Context, user *models.User) error
	SearchByUsernameOrName(ctx context.Context, term string, offset, limit int) ([]models.User, int64, error)
}

// identity turns raw phone input into its normalized form and lookup key.
type identity struct {
	normalizer phone.Normalizer
	hasher     hashing.PhoneHasher
}

func (i identity) resolve(raw string) (normalized, key string, err error) {
	normalized, err = i.normalizer.Normalize(raw)
	if err != nil {
		return "", "", NewValidationError("phone", "The phone field must be a valid number.")
	}
	return normalized, i.hasher.Hash(normalized), nil
}

// checkError maps verification failures onto the public taxonomy.
func checkError(err error, fallback ErrorCode) *AuthError {
	switch {
	case errors.Is(err, verification.ErrInvalidCode):
		return NewAuthError(CodeInvalidCode, err)
	case errors.Is(err, verification.ErrExpiredCode):
		return NewAuthError(CodeExpiredCode, err)
	case errors.Is(err, verification.ErrMaxAttempts):
		return NewAuthError(CodeMaxAttempts, err)
	}
	return NewAuthError(fallback, err)
}

func record(ctx context.Context, rec audit.Recorder, eventType string, user *models.User, phoneHash string, err error) {
	if rec == nil {
		return
	}
	ev := models.AuthEvent{
		EventType:  eventType,
		PhoneHash:  phoneHash,
		Outcome:    models.OutcomeSuccess,
		OccurredAt: time.Now().UTC(),
	}
	if user != nil {
		ev.UserID = user.UserID
		if ev.PhoneHash == "" {
			ev.PhoneHash = user.PhoneHash
		}
	}
	if err != nil {
		ev.Outcome = models.OutcomeFailure
		ev.ErrorCode = string(CodeOf(err))
	}
	rec.Record(ctx, ev)
}

func reindex(ctx context.Context, index UserIndex, user *models.User) {
	if index == nil {
		return
	}
	if err := index.IndexUser(ctx, user); err != nil {
		util.Warn("Failed to index user", zap.String("user_id", user.UserID), zap.Error(err))
	}
}
