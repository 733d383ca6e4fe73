package service

import (
	"context"
	"testing"

	"phone-auth-service/internal/models"
)

func TestAuthenticateMeLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	reg := mustRegister(t, h, "Jane Doe", testPhone)
	svc := h.factory.AuthService()

	p, err := svc.Authenticate(ctx, reg.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.User.UserID != reg.User.UserID {
		t.Fatalf("principal = %+v", p.User)
	}

	me, err := svc.Me(ctx, p)
	if err != nil || me.Name != "Jane Doe" {
		t.Fatalf("me = %+v, %v", me, err)
	}

	if err := svc.Logout(ctx, p); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, reg.Token); CodeOf(err) != CodeUnauthenticated {
		t.Fatalf("revoked token err = %v", err)
	}

	last := h.audit.events[len(h.audit.events)-1]
	if last.EventType != models.EventLoggedOut || last.Outcome != models.OutcomeSuccess {
		t.Fatalf("audit = %+v", last)
	}
}

func TestLogoutKeepsOtherTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	reg := mustRegister(t, h, "Jane Doe", testPhone)
	other, err := h.tokens.CreateToken(ctx, reg.User, "second")
	if err != nil {
		t.Fatal(err)
	}
	svc := h.factory.AuthService()

	p, _ := svc.Authenticate(ctx, reg.Token)
	if err := svc.Logout(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, other); err != nil {
		t.Fatalf("other token revoked: %v", err)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	reg := mustRegister(t, h, "Jane Doe", testPhone)
	svc := h.factory.AuthService()

	for _, raw := range []string{"", "garbage"} {
		if _, err := svc.Authenticate(ctx, raw); CodeOf(err) != CodeUnauthenticated {
			t.Errorf("Authenticate(%q) err = %v", raw, err)
		}
	}

	_ = h.users.Delete(ctx, reg.User)
	if _, err := svc.Authenticate(ctx, reg.Token); CodeOf(err) != CodeUnauthenticated {
		t.Fatalf("deleted user err = %v", err)
	}
}

func TestLogoutFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	reg := mustRegister(t, h, "Jane Doe", testPhone)
	svc := h.factory.AuthService()

	p, err := svc.Authenticate(ctx, reg.Token)
	if err != nil {
		t.Fatal(err)
	}
	h.tokens.fail = true
	if err := svc.Logout(ctx, p); CodeOf(err) != CodeLogoutFailed {
		t.Fatalf("err = %v", err)
	}
}
