package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/notification"
)

func mustRegister(t *testing.T, h *harness, name, rawPhone string) *RegisterResult {
	t.Helper()
	res, err := h.factory.RegistrationService().Register(context.Background(), RegisterRequest{Name: name, Phone: rawPhone})
	if err != nil {
		t.Fatalf("register %s: %v", rawPhone, err)
	}
	return res
}

func TestRegisterIssuesVerificationCode(t *testing.T) {
	h := newHarness("production", nil)
	res := mustRegister(t, h, "Jane Doe", "+15550000001")

	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if !regexp.MustCompile(`^jane\.doe\.\d{4}$`).MatchString(res.User.Username) {
		t.Fatalf("username = %q", res.User.Username)
	}
	if res.User.HasVerifiedPhone() {
		t.Fatal("new user must not be verified")
	}

	record, _ := h.phoneStore.Find(context.Background(), h.key("+15550000001"))
	if record == nil || record.Attempts != 0 {
		t.Fatalf("verification record = %+v", record)
	}
	if r, _ := h.loginStore.Find(context.Background(), h.key("+15550000001")); r != nil {
		t.Fatal("registration must not create a login code")
	}

	if len(h.notifier.sent) != 1 {
		t.Fatalf("sent %d messages", len(h.notifier.sent))
	}
	msg := h.notifier.sent[0].msg
	if msg.Kind != notification.KindPhoneVerification || !strings.Contains(msg.Body, record.Code) {
		t.Fatalf("message = %+v", msg)
	}
	if len(h.index.indexed) != 1 || h.index.indexed[0] != res.User.UserID {
		t.Fatalf("indexed = %v", h.index.indexed)
	}
	if len(h.audit.events) != 1 || h.audit.events[0].EventType != models.EventRegistered || h.audit.events[0].Outcome != models.OutcomeSuccess {
		t.Fatalf("audit = %+v", h.audit.events)
	}
}

func TestRegisterThenVerifyPhone(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	mustRegister(t, h, "Jane Doe", "+15550000001")

	record, _ := h.phoneStore.Find(ctx, h.key("+15550000001"))
	if record == nil {
		t.Fatal("no verification record")
	}

	svc := h.factory.PhoneVerificationService()
	res, err := svc.VerifyPhone(ctx, "+15550000001", record.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.State != StatePhoneVerified || !res.User.HasVerifiedPhone() {
		t.Fatalf("result = %+v", res)
	}
	if !res.User.PhoneVerifiedAt.Equal(base) {
		t.Fatalf("verified at = %v", res.User.PhoneVerifiedAt)
	}
	if r, _ := h.phoneStore.Find(ctx, h.key("+15550000001")); r != nil {
		t.Fatal("record must be deleted after success")
	}

	_, err = svc.VerifyPhone(ctx, "+15550000001", record.Code)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("re-verify err = %v, want INVALID_CODE", err)
	}
}

func TestRegisterRejectsTakenPhone(t *testing.T) {
	h := newHarness("production", nil)
	mustRegister(t, h, "Jane Doe", "+15550000001")

	_, err := h.factory.RegistrationService().Register(context.Background(), RegisterRequest{
		Name:  "Other Person",
		Phone: "(555) 000-0001",
	})
	if CodeOf(err) != CodePhoneTaken {
		t.Fatalf("err = %v, want PHONE_TAKEN", err)
	}
	if h.users.count() != 1 {
		t.Fatalf("users = %d", h.users.count())
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness("production", nil)
	mustRegister(t, h, "Taken", "+15550000009")
	taken, _ := h.users.FindByPhoneHash(context.Background(), h.key("+15550000009"))

	tests := []struct {
		name  string
		req   RegisterRequest
		code  ErrorCode
		field string
	}{
		{"missing name", RegisterRequest{Name: "   ", Phone: "+15550000001"}, CodeValidationError, "name"},
		{"long name", RegisterRequest{Name: strings.Repeat("a", 256), Phone: "+15550000001"}, CodeValidationError, "name"},
		{"markup in name", RegisterRequest{Name: "<b>Jane</b>", Phone: "+15550000001"}, CodeValidationError, "name"},
		{"bad phone", RegisterRequest{Name: "Jane", Phone: "not a phone"}, CodeValidationError, "phone"},
		{"short username", RegisterRequest{Name: "Jane", Username: "jd", Phone: "+15550000001"}, CodeValidationError, "username"},
		{"username format", RegisterRequest{Name: "Jane", Username: "Jane Doe", Phone: "+15550000001"}, CodeValidationError, "username"},
		{"username taken", RegisterRequest{Name: "Jane", Username: taken.Username, Phone: "+15550000001"}, CodeUsernameTaken, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.factory.RegistrationService().Register(context.Background(), tt.req)
			var ae *AuthError
			if !errors.As(err, &ae) || ae.Code != tt.code {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if tt.field != "" && len(ae.Errors[tt.field]) == 0 {
				t.Fatalf("missing field error for %s: %+v", tt.field, ae.Errors)
			}
		})
	}
	if h.users.count() != 1 {
		t.Fatalf("users = %d", h.users.count())
	}
}

func TestRegisterKeepsRequestedUsername(t *testing.T) {
	h := newHarness("production", nil)
	res, err := h.factory.RegistrationService().Register(context.Background(), RegisterRequest{
		Name:     "Jane Doe",
		Username: "jane_d",
		Phone:    "+15550000001",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.User.Username != "jane_d" {
		t.Fatalf("username = %q", res.User.Username)
	}
}

func TestRegisterRollsBackWhenTokenFails(t *testing.T) {
	h := newHarness("production", nil)
	h.tokens.fail = true

	_, err := h.factory.RegistrationService().Register(context.Background(), RegisterRequest{Name: "Jane", Phone: "+15550000001"})
	if CodeOf(err) != CodeRegistrationFailed {
		t.Fatalf("err = %v", err)
	}
	if h.users.count() != 0 || len(h.users.deleted) != 1 {
		t.Fatalf("user not rolled back: count=%d deleted=%v", h.users.count(), h.users.deleted)
	}
	if r, _ := h.phoneStore.Find(context.Background(), h.key("+15550000001")); r != nil {
		t.Fatal("verification record survived rollback")
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("no SMS expected for a failed registration")
	}
	if len(h.audit.events) != 1 || h.audit.events[0].Outcome != models.OutcomeFailure {
		t.Fatalf("audit = %+v", h.audit.events)
	}
}

func TestRegisterSurvivesNotifyFailure(t *testing.T) {
	h := newHarness("production", nil)
	h.notifier.fail = true

	res := mustRegister(t, h, "Jane", "+15550000001")
	if res.User == nil || h.users.count() != 1 {
		t.Fatal("registration must succeed when SMS fails")
	}
	if r, _ := h.phoneStore.Find(context.Background(), h.key("+15550000001")); r == nil {
		t.Fatal("verification record missing")
	}
}
