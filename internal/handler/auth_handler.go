package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/service"
)

type Registrar interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
}

type LoginFlow interface {
	SendOtp(ctx context.Context, phone string) (service.ResponseState, error)
	Verify(ctx context.Context, phone, code string) (*service.LoginResult, error)
}

type PhoneVerifier interface {
	VerifyPhone(ctx context.Context, phone, code string) (*service.PhoneVerificationResult, error)
	ResendCode(ctx context.Context, user *models.User) (service.ResponseState, error)
}

type Sessions interface {
	Authenticator
	Me(ctx context.Context, p *service.Principal) (*models.User, error)
	Logout(ctx context.Context, p *service.Principal) error
}

// AuthHandler serves registration, login and phone verification.
type AuthHandler struct {
	registration Registrar
	login        LoginFlow
	phone        PhoneVerifier
	sessions     Sessions
}

func NewAuthHandler(registration Registrar, login LoginFlow, phone PhoneVerifier, sessions Sessions) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		login:        login,
		phone:        phone,
		sessions:     sessions,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Username string `json:"username" validate:"omitempty,min=3,max=30"`
	Phone    string `json:"phone" validate:"required"`
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type codeRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6"`
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/verify-login", h.VerifyLogin)
	router.Post("/verify-phone", h.VerifyPhone)

	router.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.sessions))
		r.Post("/resend-verification-sms", h.ResendVerificationSMS)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondState(w, http.StatusOK, service.StateHealthCheck, map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, err, service.CodeValidationError)
		return
	}

	res, err := h.registration.Register(r.Context(), service.RegisterRequest{
		Name:     req.Name,
		Username: req.Username,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(w, err, service.CodeRegistrationFailed)
		return
	}
	respondState(w, http.StatusCreated, service.StateRegistered, map[string]interface{}{
		"user":  res.User,
		"token": res.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, err, service.CodeValidationError)
		return
	}

	state, err := h.login.SendOtp(r.Context(), req.Phone)
	if err != nil {
		respondError(w, err, service.CodeLoginFailed)
		return
	}
	respondState(w, http.StatusOK, state, nil)
}

func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, err, service.CodeValidationError)
		return
	}

	res, err := h.login.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		respondError(w, err, service.CodeLoginFailed)
		return
	}
	respondState(w, http.StatusOK, service.StateLoggedIn, map[string]interface{}{
		"user":  res.User,
		"token": res.Token,
	})
}

func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, err, service.CodeValidationError)
		return
	}

	res, err := h.phone.VerifyPhone(r.Context(), req.Phone, req.Code)
	if err != nil {
		respondError(w, err, service.CodePhoneVerificationFailed)
		return
	}
	respondState(w, http.StatusOK, res.State, map[string]interface{}{"user": res.User})
}

func (h *AuthHandler) ResendVerificationSMS(w http.ResponseWriter, r *http.Request) {
	state, err := h.phone.ResendCode(r.Context(), principal(r).User)
	if err != nil {
		respondError(w, err, service.CodeVerificationSMSSendFailed)
		return
	}
	respondState(w, http.StatusOK, state, nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), principal(r)); err != nil {
		respondError(w, err, service.CodeLogoutFailed)
		return
	}
	respondState(w, http.StatusOK, service.StateLoggedOut, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.Me(r.Context(), principal(r))
	if err != nil {
		respondError(w, err, service.CodeUserRetrievalFailed)
		return
	}
	respondState(w, http.StatusOK, service.StateUserRetrieved, map[string]interface{}{"user": user})
}
