package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"phone-auth-service/internal/models"
)

const issuerName = "phone-auth-service"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

// Issuer creates bearer tokens for authenticated users.
type Issuer interface {
	CreateToken(ctx context.Context, user *models.User, name string) (string, error)
}

// SessionStore records issued tokens so they can be revoked.
type SessionStore interface {
	SetActiveSession(ctx context.Context, session *models.ActiveSession) error
	GetActiveSession(ctx context.Context, tokenID string) (*models.ActiveSession, error)
	InvalidateSession(ctx context.Context, userID, tokenID string) error
}

type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type JWTIssuer struct {
	secret   []byte
	ttl      time.Duration
	sessions SessionStore
	clock    func() time.Time
}

// NewJWTIssuer signs HS256 tokens. A nil sessions store yields stateless
// tokens that cannot be revoked.
func NewJWTIssuer(secret string, ttl time.Duration, sessions SessionStore) *JWTIssuer {
	return &JWTIssuer{
		secret:   []byte(secret),
		ttl:      ttl,
		sessions: sessions,
		clock:    time.Now,
	}
}

func (i *JWTIssuer) CreateToken(ctx context.Context, user *models.User, name string) (string, error) {
	now := i.clock()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.UserID,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	if i.sessions != nil {
		err := i.sessions.SetActiveSession(ctx, &models.ActiveSession{
			TokenID:   claims.ID,
			UserID:    user.UserID,
			Name:      name,
			CreatedAt: now,
			ExpiresAt: now.Add(i.ttl),
		})
		if err != nil {
			return "", fmt.Errorf("failed to register session: %w", err)
		}
	}
	return signed, nil
}

// Parse validates signature, expiry and, when sessions are tracked, that
// the token has not been revoked.
func (i *JWTIssuer) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if i.sessions != nil {
		session, err := i.sessions.GetActiveSession(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
		if session == nil || session.UserID != claims.Subject {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

func (i *JWTIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.sessions == nil {
		return nil
	}
	return i.sessions.InvalidateSession(ctx, claims.Subject, claims.ID)
}
