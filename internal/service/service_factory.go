package service

import (
	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/bypass"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/username"
	"phone-auth-service/internal/verification"
)

// Tokens is what the factory needs from the token layer.
type Tokens interface {
	token.Issuer
	TokenVerifier
}

// Dependencies are the collaborators shared by all flows. Index and Audit
// are optional.
type Dependencies struct {
	Users           UserRepository
	Normalizer      phone.Normalizer
	Hasher          hashing.PhoneHasher
	LoginCodes      *verification.Checker
	PhoneCodes      *verification.Checker
	Usernames       *username.Generator
	Tokens          Tokens
	TokenName       string
	Notifier        notification.Notifier
	Bypass          *bypass.StagingBypass
	Index           UserIndex
	Audit           audit.Recorder
	SearchPerPage   int
	SearchMinLength int
	Clock           verification.Clock
}

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	deps Dependencies

	registration      *RegistrationService
	loginOtp          *LoginOtpService
	phoneVerification *PhoneVerificationService
	search            *UserSearchService
	auth              *AuthService
}

func NewServiceFactory(deps Dependencies) *ServiceFactory {
	if deps.Audit == nil {
		deps.Audit = audit.NopRecorder{}
	}
	if deps.SearchPerPage <= 0 {
		deps.SearchPerPage = 15
	}
	if deps.SearchMinLength <= 0 {
		deps.SearchMinLength = 2
	}
	return &ServiceFactory{deps: deps}
}

func (f *ServiceFactory) identity() identity {
	return identity{normalizer: f.deps.Normalizer, hasher: f.deps.Hasher}
}

func (f *ServiceFactory) RegistrationService() *RegistrationService {
	if f.registration == nil {
		f.registration = &RegistrationService{
			users:     f.deps.Users,
			identity:  f.identity(),
			codes:     f.deps.PhoneCodes,
			usernames: f.deps.Usernames,
			tokens:    f.deps.Tokens,
			tokenName: f.deps.TokenName,
			notifier:  f.deps.Notifier,
			index:     f.deps.Index,
			audit:     f.deps.Audit,
		}
	}
	return f.registration
}

func (f *ServiceFactory) LoginOtpService() *LoginOtpService {
	if f.loginOtp == nil {
		f.loginOtp = &LoginOtpService{
			users:     f.deps.Users,
			identity:  f.identity(),
			codes:     f.deps.LoginCodes,
			bypass:    f.deps.Bypass,
			tokens:    f.deps.Tokens,
			tokenName: f.deps.TokenName,
			notifier:  f.deps.Notifier,
			audit:     f.deps.Audit,
		}
	}
	return f.loginOtp
}

func (f *ServiceFactory) PhoneVerificationService() *PhoneVerificationService {
	if f.phoneVerification == nil {
		f.phoneVerification = &PhoneVerificationService{
			users:    f.deps.Users,
			identity: f.identity(),
			codes:    f.deps.PhoneCodes,
			bypass:   f.deps.Bypass,
			notifier: f.deps.Notifier,
			index:    f.deps.Index,
			audit:    f.deps.Audit,
			clock:    f.deps.Clock,
		}
	}
	return f.phoneVerification
}

func (f *ServiceFactory) UserSearchService() *UserSearchService {
	if f.search == nil {
		f.search = &UserSearchService{
			users:     f.deps.Users,
			index:     f.deps.Index,
			perPage:   f.deps.SearchPerPage,
			minLength: f.deps.SearchMinLength,
		}
	}
	return f.search
}

func (f *ServiceFactory) AuthService() *AuthService {
	if f.auth == nil {
		f.auth = &AuthService{
			users:  f.deps.Users,
			tokens: f.deps.Tokens,
			audit:  f.deps.Audit,
		}
	}
	return f.auth
}
