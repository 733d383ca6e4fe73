package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/username"
	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._]+$`)

const (
	maxNameLength     = 255
	minUsernameLength = 3
)

type RegisterRequest struct {
	Name     string
	Username string
	Phone    string
}

type RegisterResult struct {
	User  *models.User
	Token string
}

type RegistrationService struct {
	users     UserRepository
	identity  identity
	codes     *verification.Checker
	usernames *username.Generator
	tokens    token.Issuer
	tokenName string
	notifier  notification.Notifier
	index     UserIndex
	audit     audit.Recorder
}

// Register creates the user and its first phone verification code as one
// unit: if the code cannot be issued the user is removed again. The SMS is
// sent afterwards and its failure only leaves the user to request a resend.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	result, err := s.register(ctx, req)
	if err != nil {
		record(ctx, s.audit, models.EventRegistered, nil, "", err)
		return nil, err
	}
	record(ctx, s.audit, models.EventRegistered, result.User, "", nil)
	return result, nil
}

func (s *RegistrationService) register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	name := util.SanitizeName(req.Name)
	if name == "" {
		return nil, NewValidationError("name", "The name field is required.")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, NewValidationError("name", "The name field must not be greater than 255 characters.")
	}
	if util.ContainsSuspicious(name) {
		return nil, NewValidationError("name", "The name field contains invalid characters.")
	}

	normalized, phoneHash, err := s.identity.resolve(req.Phone)
	if err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByPhoneHash(ctx, phoneHash)
	if err != nil {
		return nil, NewAuthError(CodeRegistrationFailed, err)
	}
	if taken {
		return nil, NewAuthError(CodePhoneTaken, nil)
	}

	handle, err := s.resolveUsername(ctx, name, req.Username)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, scylla.CreateUserParams{
		Name:     name,
		Username: handle,
		Phone:    normalized,
	})
	switch {
	case errors.Is(err, scylla.ErrPhoneTaken):
		return nil, NewAuthError(CodePhoneTaken, err)
	case errors.Is(err, scylla.ErrUsernameTaken):
		return nil, NewAuthError(CodeUsernameTaken, err)
	case err != nil:
		return nil, NewAuthError(CodeRegistrationFailed, err)
	}

	code, err := s.codes.Issue(ctx, user.PhoneHash)
	if err != nil {
		s.rollback(ctx, user)
		return nil, NewAuthError(CodeRegistrationFailed, err)
	}

	issued, err := s.tokens.CreateToken(ctx, user, s.tokenName)
	if err != nil {
		if cerr := s.codes.Consume(ctx, user.PhoneHash); cerr != nil {
			util.Warn("Failed to remove verification code during rollback", zap.Error(cerr))
		}
		s.rollback(ctx, user)
		return nil, NewAuthError(CodeRegistrationFailed, err)
	}

	if err := s.notifier.Notify(ctx, user, notification.VerificationCodeMessage(code)); err != nil {
		util.Warn("Failed to queue verification SMS",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}
	reindex(ctx, s.index, user)

	util.Info("User registered",
		zap.String("user_id", user.UserID),
		zap.String("phone", phone.Mask(normalized)))

	return &RegisterResult{User: user, Token: issued}, nil
}

func (s *RegistrationService) resolveUsername(ctx context.Context, name, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		generated, err := s.usernames.GenerateFromName(ctx, name, s.users.ExistsByUsername)
		if errors.Is(err, username.ErrExhausted) {
			return "", NewAuthError(CodeUsernameExhausted, err)
		}
		if err != nil {
			return "", NewAuthError(CodeRegistrationFailed, err)
		}
		return generated, nil
	}

	if len(requested) < minUsernameLength || len(requested) > username.MaxLength {
		return "", NewValidationError("username", "The username field must be between 3 and 30 characters.")
	}
	if !usernamePattern.MatchString(requested) {
		return "", NewValidationError("username", "The username field format is invalid.")
	}

	taken, err := s.users.ExistsByUsername(ctx, requested)
	if err != nil {
		return "", NewAuthError(CodeRegistrationFailed, err)
	}
	if taken {
		return "", NewAuthError(CodeUsernameTaken, nil)
	}
	return requested, nil
}

func (s *RegistrationService) rollback(ctx context.Context, user *models.User) {
	if err := s.users.Delete(ctx, user); err != nil {
		util.Error("Failed to roll back registration",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}
}
