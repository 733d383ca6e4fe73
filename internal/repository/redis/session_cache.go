package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

const (
	activeSessionPrefix = "active_session:"
	userSessionsPrefix  = "user_sessions:"
)

// SessionCache is the server side registry of issued tokens, keyed by token
// ID. A token whose entry is gone is treated as revoked.
type SessionCache struct {
	client goredis.Cmdable
}

func NewSessionCache(client goredis.Cmdable) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SetActiveSession(ctx context.Context, session *models.ActiveSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.TokenID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, activeSessionPrefix+session.TokenID, data, ttl)
	userSessionsKey := userSessionsPrefix + session.UserID
	pipe.SAdd(ctx, userSessionsKey, session.TokenID)
	pipe.Expire(ctx, userSessionsKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to set active session",
			zap.String("user_id", session.UserID),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to set active session: %w", err)
	}

	util.Debug("Active session set", zap.String("user_id", session.UserID), zap.Duration("ttl", ttl))
	return nil
}

// GetActiveSession returns nil when the token is unknown or revoked.
func (c *SessionCache) GetActiveSession(ctx context.Context, tokenID string) (*models.ActiveSession, error) {
	data, err := c.client.Get(ctx, activeSessionPrefix+tokenID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	var session models.ActiveSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (c *SessionCache) InvalidateSession(ctx context.Context, userID, tokenID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, activeSessionPrefix+tokenID)
	pipe.SRem(ctx, userSessionsPrefix+userID, tokenID)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to invalidate session", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	util.Info("Session invalidated", zap.String("user_id", userID))
	return nil
}

