package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"phone-auth-service/internal/bucketing"
	"phone-auth-service/internal/encryption"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/util"
)

var (
	ErrPhoneTaken    = errors.New("phone number already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

const (
	userColumns = `user_bucket, user_id, name, username, phone_encrypted, phone_hash,
        phone_verified_at, created_at, updated_at`

	insertUserStmt = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectUserStmt = `SELECT ` + userColumns + ` FROM users WHERE user_bucket = ? AND user_id = ?`

	claimPhoneStmt = `INSERT INTO users_by_phone_hash (phone_hash, user_bucket, user_id)
        VALUES (?, ?, ?) IF NOT EXISTS`

	claimUsernameStmt = `INSERT INTO users_by_username (username, user_bucket, user_id)
        VALUES (?, ?, ?) IF NOT EXISTS`

	lookupPhoneStmt    = `SELECT user_bucket, user_id FROM users_by_phone_hash WHERE phone_hash = ?`
	lookupUsernameStmt = `SELECT user_bucket, user_id FROM users_by_username WHERE username = ?`

	releasePhoneStmt    = `DELETE FROM users_by_phone_hash WHERE phone_hash = ? IF EXISTS`
	releaseUsernameStmt = `DELETE FROM users_by_username WHERE username = ? IF EXISTS`

	markVerifiedStmt = `UPDATE users SET phone_verified_at = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`

	deleteUserStmt = `DELETE FROM users WHERE user_bucket = ? AND user_id = ?`
)

type CreateUserParams struct {
	Name     string
	Username string
	// Phone must already be E.164 normalized.
	Phone string
}

// UserRepository stores users in Scylla. Uniqueness of phone hash and
// username is claimed through LWT inserts on the lookup tables before the
// user row is written.
type UserRepository struct {
	client    *ScyllaClient
	hasher    hashing.PhoneHasher
	cipher    encryption.PhoneCipher
	bucketing *bucketing.BucketingManager
	clock     func() time.Time
}

func NewUserRepository(client *ScyllaClient, hasher hashing.PhoneHasher, cipher encryption.PhoneCipher, bm *bucketing.BucketingManager) *UserRepository {
	return &UserRepository{
		client:    client,
		hasher:    hasher,
		cipher:    cipher,
		bucketing: bm,
		clock:     time.Now,
	}
}

func (r *UserRepository) Create(ctx context.Context, params CreateUserParams) (*models.User, error) {
	encrypted, err := r.cipher.Encrypt(ctx, params.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}

	now := r.clock().UTC()
	user := &models.User{
		UserID:         uuid.New().String(),
		Name:           params.Name,
		Username:       params.Username,
		Phone:          params.Phone,
		PhoneEncrypted: encrypted,
		PhoneHash:      r.hasher.Hash(params.Phone),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	user.UserBucket = r.bucketing.GetUserBucket(user.UserID)

	applied, err := r.claim(ctx, claimPhoneStmt, user.PhoneHash, user)
	if err != nil {
		return nil, fmt.Errorf("failed to claim phone: %w", err)
	}
	if !applied {
		return nil, ErrPhoneTaken
	}

	applied, err = r.claim(ctx, claimUsernameStmt, user.Username, user)
	if err != nil || !applied {
		r.release(ctx, releasePhoneStmt, user.PhoneHash)
		if err != nil {
			return nil, fmt.Errorf("failed to claim username: %w", err)
		}
		return nil, ErrUsernameTaken
	}

	err = r.client.Query(ctx, insertUserStmt,
		user.UserBucket, user.UserID, user.Name, user.Username, user.PhoneEncrypted,
		user.PhoneHash, user.PhoneVerifiedAt, user.CreatedAt, user.UpdatedAt).Exec()
	if err != nil {
		r.release(ctx, releasePhoneStmt, user.PhoneHash)
		r.release(ctx, releaseUsernameStmt, user.Username)
		util.Error("Failed to create user",
			zap.String("phone", phone.Mask(params.Phone)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created successfully",
		zap.String("user_id", user.UserID),
		zap.String("phone", phone.Mask(params.Phone)))

	return user, nil
}

func (r *UserRepository) claim(ctx context.Context, stmt, key string, user *models.User) (bool, error) {
	existing := map[string]interface{}{}
	return r.client.Query(ctx, stmt, key, user.UserBucket, user.UserID).MapScanCAS(existing)
}

func (r *UserRepository) release(ctx context.Context, stmt, key string) {
	if _, err := r.client.Query(ctx, stmt, key).MapScanCAS(map[string]interface{}{}); err != nil {
		util.Warn("Failed to release uniqueness claim", zap.Error(err))
	}
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return r.findByBucketAndID(ctx, r.bucketing.GetUserBucket(userID), userID)
}

// FindByPhoneHash returns nil, nil when no user owns the hash.
func (r *UserRepository) FindByPhoneHash(ctx context.Context, phoneHash string) (*models.User, error) {
	return r.findVia(ctx, lookupPhoneStmt, phoneHash)
}

func (r *UserRepository) FindByUsernameExact(ctx context.Context, username string) (*models.User, error) {
	return r.findVia(ctx, lookupUsernameStmt, username)
}

func (r *UserRepository) ExistsByPhoneHash(ctx context.Context, phoneHash string) (bool, error) {
	return r.exists(ctx, lookupPhoneStmt, phoneHash)
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, lookupUsernameStmt, username)
}

func (r *UserRepository) exists(ctx context.Context, stmt, key string) (bool, error) {
	var bucket int
	var userID string
	err := r.client.Query(ctx, stmt, key).Scan(&bucket, &userID)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

func (r *UserRepository) findVia(ctx context.Context, stmt, key string) (*models.User, error) {
	var bucket int
	var userID string
	err := r.client.Query(ctx, stmt, key).Scan(&bucket, &userID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return r.findByBucketAndID(ctx, bucket, userID)
}

func (r *UserRepository) findByBucketAndID(ctx context.Context, bucket int, userID string) (*models.User, error) {
	user := &models.User{}
	err := r.client.Query(ctx, selectUserStmt, bucket, userID).Scan(
		&user.UserBucket, &user.UserID, &user.Name, &user.Username, &user.PhoneEncrypted,
		&user.PhoneHash, &user.PhoneVerifiedAt, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		util.Error("Failed to get user by ID", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	r.hydrate(ctx, user)
	return user, nil
}

// hydrate opens the stored phone ciphertext. A failure leaves Phone empty so
// the user is treated as not contactable.
func (r *UserRepository) hydrate(ctx context.Context, user *models.User) {
	plaintext, ok := r.cipher.Decrypt(ctx, user.PhoneEncrypted)
	if !ok {
		util.Warn("Stored phone could not be decrypted", zap.String("user_id", user.UserID))
		user.Phone = ""
		return
	}
	user.Phone = plaintext
}

func (r *UserRepository) MarkPhoneVerified(ctx context.Context, user *models.User, at time.Time) error {
	at = at.UTC()
	if err := r.client.Query(ctx, markVerifiedStmt, at, at, user.UserBucket, user.UserID).Exec(); err != nil {
		util.Error("Failed to mark phone verified", zap.String("user_id", user.UserID), zap.Error(err))
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}
	user.PhoneVerifiedAt = &at
	user.UpdatedAt = at
	return nil
}

// Delete removes the user row and releases both uniqueness claims.
func (r *UserRepository) Delete(ctx context.Context, user *models.User) error {
	if err := r.client.Query(ctx, deleteUserStmt, user.UserBucket, user.UserID).Exec(); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	r.release(ctx, releasePhoneStmt, user.PhoneHash)
	r.release(ctx, releaseUsernameStmt, user.Username)

	util.Info("User deleted", zap.String("user_id", user.UserID))
	return nil
}

func (r *UserRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
