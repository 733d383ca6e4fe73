package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/bypass"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

type PhoneVerificationResult struct {
	State ResponseState
	User  *models.User
}

type PhoneVerificationService struct {
	users    UserRepository
	identity identity
	codes    *verification.Checker
	bypass   *bypass.StagingBypass
	notifier notification.Notifier
	index    UserIndex
	audit    audit.Recorder
	clock    verification.Clock
}

// VerifyPhone marks the phone verified once the code checks out. A code is
// single use: submitting it again fails with INVALID_CODE.
func (s *PhoneVerificationService) VerifyPhone(ctx context.Context, rawPhone, code string) (*PhoneVerificationResult, error) {
	_, key, err := s.identity.resolve(rawPhone)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByPhoneHash(ctx, key)
	if err != nil {
		return nil, NewAuthError(CodePhoneVerificationFailed, err)
	}
	if user == nil {
		return nil, NewAuthError(CodeUserNotFound, nil)
	}

	bypassed := s.bypass.Allows(bypass.FeaturePhoneVerification, code)
	if bypassed {
		util.Warn("Phone verification bypass used", zap.String("user_id", user.UserID))
	} else if err := s.codes.Check(ctx, key, code); err != nil {
		authErr := checkError(err, CodePhoneVerificationFailed)
		record(ctx, s.audit, models.EventPhoneVerified, user, key, authErr)
		return nil, authErr
	}

	if !user.HasVerifiedPhone() {
		if err := s.users.MarkPhoneVerified(ctx, user, s.now()); err != nil {
			return nil, NewAuthError(CodeUnableToVerifyPhone, err)
		}
	}

	if !bypassed {
		if err := s.codes.Consume(ctx, key); err != nil {
			util.Warn("Failed to delete used verification code", zap.String("user_id", user.UserID), zap.Error(err))
		}
	}

	reindex(ctx, s.index, user)
	record(ctx, s.audit, models.EventPhoneVerified, user, key, nil)
	return &PhoneVerificationResult{State: StatePhoneVerified, User: user}, nil
}

// ResendCode replaces any outstanding code with a new one. Delivery is
// best effort.
func (s *PhoneVerificationService) ResendCode(ctx context.Context, user *models.User) (ResponseState, error) {
	if user.HasVerifiedPhone() {
		return StatePhoneAlreadyVerified, nil
	}

	code, err := s.codes.Issue(ctx, user.PhoneHash)
	if err != nil {
		return "", NewAuthError(CodeVerificationSMSSendFailed, err)
	}

	if err := s.notifier.Notify(ctx, user, notification.VerificationCodeMessage(code)); err != nil {
		util.Warn("Failed to send verification SMS",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	record(ctx, s.audit, models.EventVerificationSent, user, "", nil)
	return StateVerificationSMSSent, nil
}

func (s *PhoneVerificationService) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}
