package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"phone-auth-service/internal/models"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*models.ActiveSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]*models.ActiveSession{}}
}

func (m *memorySessions) SetActiveSession(_ context.Context, s *models.ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenID] = s
	return nil
}

func (m *memorySessions) GetActiveSession(_ context.Context, id string) (*models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memorySessions) InvalidateSession(_ context.Context, _, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var user = &models.User{UserID: "user-1", Username: "john.doe.0001"}

func TestCreateAndParse(t *testing.T) {
	ctx := context.Background()
	sessions := newMemorySessions()
	issuer := NewJWTIssuer("secret", time.Hour, sessions)

	raw, err := issuer.CreateToken(ctx, user, "phone-auth-token")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := issuer.Parse(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "user-1" || claims.Name != "phone-auth-token" || claims.ID == "" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions.sessions))
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	ctx := context.Background()
	issuer := NewJWTIssuer("secret", time.Hour, newMemorySessions())

	raw, _ := issuer.CreateToken(ctx, user, "t")
	claims, _ := issuer.Parse(ctx, raw)
	if err := issuer.Revoke(ctx, claims); err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Parse(ctx, raw); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("err = %v, want ErrRevokedToken", err)
	}
}

func TestExpiredAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	issuer := NewJWTIssuer("secret", time.Minute, nil)
	issued := time.Now().Add(-time.Hour)
	issuer.clock = func() time.Time { return issued }
	raw, _ := issuer.CreateToken(ctx, user, "t")

	issuer.clock = time.Now
	if _, err := issuer.Parse(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired err = %v", err)
	}

	other := NewJWTIssuer("other-secret", time.Hour, nil)
	foreign, _ := other.CreateToken(ctx, user, "t")
	if _, err := issuer.Parse(ctx, foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign err = %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := issuer.Parse(ctx, unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unsigned err = %v", err)
	}
}

func TestStatelessRevokeIsNoop(t *testing.T) {
	issuer := NewJWTIssuer("secret", time.Hour, nil)
	if err := issuer.Revoke(context.Background(), &Claims{}); err != nil {
		t.Fatal(err)
	}
}
