package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

const (
	fieldCode      = "code"
	fieldAttempts  = "attempts"
	fieldCreatedAt = "created_at"
)

// incrementScript bumps attempts only when the record still exists.
var incrementScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
end
return -1
`)

// VerificationCodeStore keeps one hash per identity key under the purpose's
// table prefix. The TTL only bounds storage; expiry is judged from created_at.
type VerificationCodeStore struct {
	client    goredis.Cmdable
	purpose   verification.Purpose
	retention time.Duration
	clock     verification.Clock
}

func NewVerificationCodeStore(client goredis.Cmdable, purpose verification.Purpose, retention time.Duration, clock verification.Clock) *VerificationCodeStore {
	if clock == nil {
		clock = time.Now
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &VerificationCodeStore{
		client:    client,
		purpose:   purpose,
		retention: retention,
		clock:     clock,
	}
}

func (s *VerificationCodeStore) key(identity string) string {
	return s.purpose.Table() + ":" + identity
}

func (s *VerificationCodeStore) Store(ctx context.Context, identity, code string) error {
	key := s.key(identity)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldCode, code,
		fieldAttempts, 0,
		fieldCreatedAt, s.clock().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store verification code",
			zap.String("purpose", string(s.purpose)),
			zap.Error(err))
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	util.Debug("Verification code stored", zap.String("purpose", string(s.purpose)))
	return nil
}

func (s *VerificationCodeStore) Find(ctx context.Context, identity string) (*verification.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseRecord(fields)
}

func (s *VerificationCodeStore) Delete(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}

func (s *VerificationCodeStore) IncrementAttempts(ctx context.Context, identity string) error {
	n, err := incrementScript.Run(ctx, s.client, []string{s.key(identity)}, fieldAttempts).Int64()
	if err != nil {
		return fmt.Errorf("failed to increment verification attempts: %w", err)
	}
	if n < 0 {
		util.Debug("Attempt increment on missing verification code",
			zap.String("purpose", string(s.purpose)))
	}
	return nil
}

func parseRecord(fields map[string]string) (*verification.Record, error) {
	code, ok := fields[fieldCode]
	if !ok {
		return nil, fmt.Errorf("verification code record missing %q", fieldCode)
	}

	attempts := 0
	if raw, ok := fields[fieldAttempts]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid attempts value %q: %w", raw, err)
		}
		attempts = n
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at value: %w", err)
	}

	return &verification.Record{Code: code, Attempts: attempts, CreatedAt: createdAt}, nil
}
