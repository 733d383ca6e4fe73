package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/service"
	"phone-auth-service/internal/token"
)

type stubRegistrar struct {
	got service.RegisterRequest
	err error
}

func (s *stubRegistrar) Register(_ context.Context, req service.RegisterRequest) (*service.RegisterResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.RegisterResult{User: &models.User{UserID: "u1", Name: req.Name, Phone: req.Phone}, Token: "tok"}, nil
}

type stubLogin struct{ err error }

func (s *stubLogin) SendOtp(context.Context, string) (service.ResponseState, error) {
	if s.err != nil {
		return "", s.err
	}
	return service.StateLoginCodeSent, nil
}

func (s *stubLogin) Verify(_ context.Context, _, code string) (*service.LoginResult, error) {
	if code != "123456" {
		return nil, service.NewAuthError(service.CodeInvalidCode, nil)
	}
	return &service.LoginResult{User: &models.User{UserID: "u1"}, Token: "tok"}, nil
}

type stubPhone struct{ resent *models.User }

func (s *stubPhone) VerifyPhone(context.Context, string, string) (*service.PhoneVerificationResult, error) {
	return &service.PhoneVerificationResult{State: service.StatePhoneVerified, User: &models.User{UserID: "u1"}}, nil
}

func (s *stubPhone) ResendCode(_ context.Context, user *models.User) (service.ResponseState, error) {
	s.resent = user
	return service.StateVerificationSMSSent, nil
}

type stubSessions struct {
	loggedOut bool
}

func (s *stubSessions) Authenticate(_ context.Context, raw string) (*service.Principal, error) {
	if raw != "good" {
		return nil, service.NewAuthError(service.CodeUnauthenticated, nil)
	}
	return &service.Principal{User: &models.User{UserID: "u1", Name: "Jane"}, Claims: &token.Claims{}}, nil
}

func (s *stubSessions) Me(_ context.Context, p *service.Principal) (*models.User, error) {
	return p.User, nil
}

func (s *stubSessions) Logout(context.Context, *service.Principal) error {
	s.loggedOut = true
	return nil
}

type stubSearch struct {
	query string
	page  int
}

func (s *stubSearch) Search(_ context.Context, q string, page int) (*service.SearchResult, error) {
	s.query, s.page = q, page
	if len(strings.TrimSpace(q)) < 2 {
		return nil, service.NewAuthError(service.CodeSearchTermTooShort, nil)
	}
	return &service.SearchResult{
		State: service.StateUsersFound,
		Users: []models.User{{UserID: "u1", Username: "jane"}},
		Meta:  service.SearchMeta{CurrentPage: page, PerPage: 15, Total: 1, LastPage: 1},
	}, nil
}

type fixture struct {
	router   http.Handler
	register *stubRegistrar
	login    *stubLogin
	phone    *stubPhone
	sessions *stubSessions
	search   *stubSearch
}

func newFixture(opts RouterOptions) *fixture {
	f := &fixture{
		register: &stubRegistrar{},
		login:    &stubLogin{},
		phone:    &stubPhone{},
		sessions: &stubSessions{},
		search:   &stubSearch{},
	}
	f.router = NewRouter(
		NewAuthHandler(f.register, f.login, f.phone, f.sessions),
		NewSearchHandler(f.search),
		zap.NewNop(),
		opts,
	)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body, bearer string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	f := newFixture(RouterOptions{})
	code, body := f.do(t, http.MethodGet, "/api/health", "", "")
	if code != http.StatusOK || body["status"] != "HEALTH_CHECK" || body["timestamp"] == nil {
		t.Fatalf("%d %v", code, body)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	f := newFixture(RouterOptions{})
	code, body := f.do(t, http.MethodPost, "/api/register", `{"name":"Jane","phone":"+15550000001"}`, "")
	if code != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["status"] != "REGISTERED" || body["token"] != "tok" {
		t.Fatalf("body = %v", body)
	}
	user := body["user"].(map[string]interface{})
	if _, leaked := user["phone"]; leaked {
		t.Fatal("plaintext phone must not be serialized")
	}
	if f.register.got.Name != "Jane" {
		t.Fatalf("request = %+v", f.register.got)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(RouterOptions{})
	code, body := f.do(t, http.MethodPost, "/api/register", `{"username":"ab"}`, "")
	if code != http.StatusUnprocessableEntity || body["error"] != "VALIDATION_ERROR" {
		t.Fatalf("%d %v", code, body)
	}
	errs := body["errors"].(map[string]interface{})
	for _, field := range []string{"name", "phone", "username"} {
		if errs[field] == nil {
			t.Errorf("missing error for %s: %v", field, errs)
		}
	}
}

func TestServiceErrorEnvelope(t *testing.T) {
	f := newFixture(RouterOptions{})
	f.register.err = service.NewAuthError(service.CodePhoneTaken, nil)
	code, body := f.do(t, http.MethodPost, "/api/register", `{"name":"Jane","phone":"+15550000001"}`, "")
	if code != http.StatusUnprocessableEntity || body["status"] != "PHONE_TAKEN" || body["error"] != "PHONE_TAKEN" {
		t.Fatalf("%d %v", code, body)
	}
	if _, ok := body["errors"]; ok {
		t.Fatal("errors key must be omitted when empty")
	}

	f.register.err = errors.New("database on fire")
	code, body = f.do(t, http.MethodPost, "/api/register", `{"name":"Jane","phone":"+15550000001"}`, "")
	if code != http.StatusInternalServerError || body["error"] != "REGISTRATION_FAILED" {
		t.Fatalf("%d %v", code, body)
	}
	if strings.Contains(body["message"].(string), "fire") {
		t.Fatal("internal error leaked")
	}
}

func TestLoginEndpoints(t *testing.T) {
	f := newFixture(RouterOptions{})
	code, body := f.do(t, http.MethodPost, "/api/login", `{"phone":"+15550000001"}`, "")
	if code != http.StatusOK || body["status"] != "LOGIN_CODE_SENT" {
		t.Fatalf("%d %v", code, body)
	}

	f.login.err = service.NewAuthError(service.CodeUserNotFound, nil)
	code, body = f.do(t, http.MethodPost, "/api/login", `{"phone":"+15550000001"}`, "")
	if code != http.StatusNotFound || body["error"] != "USER_NOT_FOUND" {
		t.Fatalf("%d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/verify-login", `{"phone":"+15550000001","code":"12345"}`, "")
	if code != http.StatusUnprocessableEntity || body["error"] != "VALIDATION_ERROR" {
		t.Fatalf("short code: %d %v", code, body)
	}
	code, body = f.do(t, http.MethodPost, "/api/verify-login", `{"phone":"+15550000001","code":"000000"}`, "")
	if code != http.StatusUnprocessableEntity || body["error"] != "INVALID_CODE" {
		t.Fatalf("wrong code: %d %v", code, body)
	}
	code, body = f.do(t, http.MethodPost, "/api/verify-login", `{"phone":"+15550000001","code":"123456"}`, "")
	if code != http.StatusOK || body["status"] != "LOGGED_IN" || body["token"] != "tok" {
		t.Fatalf("%d %v", code, body)
	}
}

func TestProtectedRoutes(t *testing.T) {
	f := newFixture(RouterOptions{})

	for _, path := range []string{"/api/me", "/api/logout", "/api/resend-verification-sms"} {
		method := http.MethodPost
		if path == "/api/me" {
			method = http.MethodGet
		}
		code, body := f.do(t, method, path, "", "bad")
		if code != http.StatusUnauthorized || body["error"] != "UNAUTHENTICATED" {
			t.Errorf("%s: %d %v", path, code, body)
		}
	}

	code, body := f.do(t, http.MethodGet, "/api/me", "", "good")
	if code != http.StatusOK || body["status"] != "USER_RETRIEVED" {
		t.Fatalf("%d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/resend-verification-sms", "", "good")
	if code != http.StatusOK || body["status"] != "VERIFICATION_SMS_SENT" || f.phone.resent == nil {
		t.Fatalf("%d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/logout", "", "good")
	if code != http.StatusOK || body["status"] != "LOGGED_OUT" || !f.sessions.loggedOut {
		t.Fatalf("%d %v", code, body)
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(RouterOptions{})
	code, body := f.do(t, http.MethodGet, "/api/search/users?q=ja&page=x", "", "")
	if code != http.StatusOK || body["status"] != "USERS_FOUND" {
		t.Fatalf("%d %v", code, body)
	}
	if f.search.page != 1 || f.search.query != "ja" {
		t.Fatalf("search called with %q page %d", f.search.query, f.search.page)
	}
	meta := body["meta"].(map[string]interface{})
	if meta["per_page"].(float64) != 15 {
		t.Fatalf("meta = %v", meta)
	}

	code, body = f.do(t, http.MethodGet, "/api/search/users?q=j", "", "")
	if code != http.StatusUnprocessableEntity || body["error"] != "SEARCH_TERM_TOO_SHORT" {
		t.Fatalf("%d %v", code, body)
	}
}

func TestRequireHTTPS(t *testing.T) {
	f := newFixture(RouterOptions{RequireHTTPS: true})
	code, _ := f.do(t, http.MethodGet, "/api/health", "", "")
	if code != http.StatusUpgradeRequired {
		t.Fatalf("status = %d", code)
	}
}

func TestReady(t *testing.T) {
	f := newFixture(RouterOptions{Ready: func(context.Context) error { return errors.New("redis down") }})
	code, body := f.do(t, http.MethodGet, "/api/ready", "", "")
	if code != http.StatusServiceUnavailable || body["status"] != "unavailable" {
		t.Fatalf("%d %v", code, body)
	}
}
