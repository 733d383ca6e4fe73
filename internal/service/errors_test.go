package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		CodeUserNotFound:       http.StatusNotFound,
		CodeInvalidCode:        http.StatusUnprocessableEntity,
		CodeValidationError:    http.StatusUnprocessableEntity,
		CodeUnauthenticated:    http.StatusUnauthorized,
		CodeCodeSendFailed:     http.StatusInternalServerError,
		ErrorCode("SOMETHING"): http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.Status(); got != want {
			t.Errorf("%s.Status() = %d, want %d", code, got, want)
		}
	}
}

func TestAuthErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewAuthError(CodeInvalidCode, errors.New("cause")))
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatal("expected match on code")
	}
	if errors.Is(err, ErrExpiredCode) {
		t.Fatal("unexpected match on different code")
	}
	if CodeOf(err) != CodeInvalidCode {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}
}
