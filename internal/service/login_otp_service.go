package service

import (
	"context"

	"go.uber.org/zap"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/bypass"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

type LoginResult struct {
	User  *models.User
	Token string
}

type LoginOtpService struct {
	users     UserRepository
	identity  identity
	codes     *verification.Checker
	bypass    *bypass.StagingBypass
	tokens    token.Issuer
	tokenName string
	notifier  notification.Notifier
	audit     audit.Recorder
}

// SendOtp issues a fresh login code. Unlike registration, a delivery
// failure here is reported to the caller.
func (s *LoginOtpService) SendOtp(ctx context.Context, rawPhone string) (ResponseState, error) {
	normalized, key, err := s.identity.resolve(rawPhone)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByPhoneHash(ctx, key)
	if err != nil {
		return "", NewAuthError(CodeLoginFailed, err)
	}
	if user == nil {
		record(ctx, s.audit, models.EventLoginCodeSent, nil, key, ErrUserNotFound)
		return "", NewAuthError(CodeUserNotFound, nil)
	}

	code, err := s.codes.Issue(ctx, key)
	if err != nil {
		return "", NewAuthError(CodeCodeSendFailed, err)
	}

	if err := s.notifier.Notify(ctx, user, notification.LoginCodeMessage(code)); err != nil {
		util.Error("Login code send failed",
			zap.String("phone", phone.Mask(normalized)),
			zap.Error(err))
		sendErr := NewAuthError(CodeCodeSendFailed, err)
		record(ctx, s.audit, models.EventLoginCodeSent, user, key, sendErr)
		return "", sendErr
	}

	record(ctx, s.audit, models.EventLoginCodeSent, user, key, nil)
	return StateLoginCodeSent, nil
}

// Verify checks a login code, or the staging magic value, and issues a token.
func (s *LoginOtpService) Verify(ctx context.Context, rawPhone, code string) (*LoginResult, error) {
	_, key, err := s.identity.resolve(rawPhone)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByPhoneHash(ctx, key)
	if err != nil {
		return nil, NewAuthError(CodeLoginFailed, err)
	}
	if user == nil {
		return nil, NewAuthError(CodeUserNotFound, nil)
	}

	bypassed := s.bypass.Allows(bypass.FeatureLoginOTP, code)
	if bypassed {
		util.Warn("Login code bypass used", zap.String("user_id", user.UserID))
	} else if err := s.codes.Check(ctx, key, code); err != nil {
		authErr := checkError(err, CodeLoginFailed)
		record(ctx, s.audit, models.EventLoggedIn, user, key, authErr)
		return nil, authErr
	}

	issued, err := s.tokens.CreateToken(ctx, user, s.tokenName)
	if err != nil {
		return nil, NewAuthError(CodeLoginFailed, err)
	}

	if !bypassed {
		if err := s.codes.Consume(ctx, key); err != nil {
			util.Warn("Failed to delete used login code", zap.String("user_id", user.UserID), zap.Error(err))
		}
	}

	record(ctx, s.audit, models.EventLoggedIn, user, key, nil)
	return &LoginResult{User: user, Token: issued}, nil
}
