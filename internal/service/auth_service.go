package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/util"
)

// TokenVerifier validates and revokes bearer tokens.
type TokenVerifier interface {
	Parse(ctx context.Context, raw string) (*token.Claims, error)
	Revoke(ctx context.Context, claims *token.Claims) error
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User   *models.User
	Claims *token.Claims
}

type AuthService struct {
	users  UserRepository
	tokens TokenVerifier
	audit  audit.Recorder
}

func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	if rawToken == "" {
		return nil, NewAuthError(CodeUnauthenticated, nil)
	}
	claims, err := s.tokens.Parse(ctx, rawToken)
	if err != nil {
		if !errors.Is(err, token.ErrInvalidToken) && !errors.Is(err, token.ErrRevokedToken) {
			util.Warn("Token validation failed", zap.Error(err))
		}
		return nil, NewAuthError(CodeUnauthenticated, err)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, NewAuthError(CodeUnauthenticated, err)
	}
	if user == nil {
		return nil, NewAuthError(CodeUnauthenticated, nil)
	}
	return &Principal{User: user, Claims: claims}, nil
}

// Me reloads the caller so the response reflects the stored state.
func (s *AuthService) Me(ctx context.Context, p *Principal) (*models.User, error) {
	user, err := s.users.FindByID(ctx, p.User.UserID)
	if err != nil {
		return nil, NewAuthError(CodeUserRetrievalFailed, err)
	}
	if user == nil {
		return nil, NewAuthError(CodeUserNotFound, nil)
	}
	return user, nil
}

// Logout revokes only the token used for the current request.
func (s *AuthService) Logout(ctx context.Context, p *Principal) error {
	if err := s.tokens.Revoke(ctx, p.Claims); err != nil {
		util.Error("Logout failed", zap.String("user_id", p.User.UserID), zap.Error(err))
		authErr := NewAuthError(CodeLogoutFailed, err)
		record(ctx, s.audit, models.EventLoggedOut, p.User, "", authErr)
		return authErr
	}
	record(ctx, s.audit, models.EventLoggedOut, p.User, "", nil)
	return nil
}
