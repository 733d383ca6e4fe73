package service

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	CodeUserNotFound              ErrorCode = "USER_NOT_FOUND"
	CodeInvalidCode               ErrorCode = "INVALID_CODE"
	CodeExpiredCode               ErrorCode = "EXPIRED_CODE"
	CodeMaxAttempts               ErrorCode = "MAX_ATTEMPTS"
	CodeCodeSendFailed            ErrorCode = "CODE_SEND_FAILED"
	CodeUsernameExhausted         ErrorCode = "USERNAME_EXHAUSTED"
	CodeRegistrationFailed        ErrorCode = "REGISTRATION_FAILED"
	CodeValidationError           ErrorCode = "VALIDATION_ERROR"
	CodePhoneTaken                ErrorCode = "PHONE_TAKEN"
	CodeUsernameTaken             ErrorCode = "USERNAME_TAKEN"
	CodeUnableToVerifyPhone       ErrorCode = "UNABLE_TO_VERIFY_PHONE"
	CodePhoneVerificationFailed   ErrorCode = "PHONE_VERIFICATION_FAILED"
	CodeVerificationSMSSendFailed ErrorCode = "VERIFICATION_SMS_SEND_FAILED"
	CodeLoginFailed               ErrorCode = "LOGIN_FAILED"
	CodeLogoutFailed              ErrorCode = "LOGOUT_FAILED"
	CodeUserRetrievalFailed       ErrorCode = "USER_RETRIEVAL_FAILED"
	CodeUnauthenticated           ErrorCode = "UNAUTHENTICATED"
	CodeSearchTermTooShort        ErrorCode = "SEARCH_TERM_TOO_SHORT"
	CodeSearchFailed              ErrorCode = "SEARCH_FAILED"
)

type errorInfo struct {
	message string
	status  int
}

var errorTable = map[ErrorCode]errorInfo{
	CodeUserNotFound:              {"User not found.", http.StatusNotFound},
	CodeInvalidCode:               {"Invalid or incorrect verification code.", http.StatusUnprocessableEntity},
	CodeExpiredCode:               {"Verification code has expired (10 minutes).", http.StatusUnprocessableEntity},
	CodeMaxAttempts:               {"Too many failed attempts. Please request a new verification code.", http.StatusUnprocessableEntity},
	CodeCodeSendFailed:            {"Failed to send verification code. Please try again later.", http.StatusInternalServerError},
	CodeUsernameExhausted:         {"Unable to generate a unique username. Please choose one.", http.StatusInternalServerError},
	CodeRegistrationFailed:        {"Registration failed. Please try again later.", http.StatusInternalServerError},
	CodeValidationError:           {"The given data was invalid.", http.StatusUnprocessableEntity},
	CodePhoneTaken:                {"The phone has already been taken.", http.StatusUnprocessableEntity},
	CodeUsernameTaken:             {"The username has already been taken.", http.StatusUnprocessableEntity},
	CodeUnableToVerifyPhone:       {"Unable to verify phone.", http.StatusInternalServerError},
	CodePhoneVerificationFailed:   {"Phone verification failed. Please try again later.", http.StatusInternalServerError},
	CodeVerificationSMSSendFailed: {"Failed to send verification SMS. Please try again later.", http.StatusInternalServerError},
	CodeLoginFailed:               {"Login failed. Please try again later.", http.StatusInternalServerError},
	CodeLogoutFailed:              {"Logout failed. Please try again.", http.StatusInternalServerError},
	CodeUserRetrievalFailed:       {"Unable to retrieve user information.", http.StatusInternalServerError},
	CodeUnauthenticated:           {"Unauthenticated.", http.StatusUnauthorized},
	CodeSearchTermTooShort:        {"Search term must be at least 2 characters long.", http.StatusUnprocessableEntity},
	CodeSearchFailed:              {"An error occurred while searching for users.", http.StatusInternalServerError},
}

func (c ErrorCode) Message() string {
	if info, ok := errorTable[c]; ok {
		return info.message
	}
	return "An unexpected error occurred."
}

func (c ErrorCode) Status() int {
	if info, ok := errorTable[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// AuthError is the error type returned by every flow. Errors holds field
// level validation messages; Err is the internal cause and is never shown
// to clients.
type AuthError struct {
	Code   ErrorCode
	Errors map[string][]string
	Err    error
}

func NewAuthError(code ErrorCode, cause error) *AuthError {
	return &AuthError{Code: code, Err: cause}
}

func NewValidationError(field, message string) *AuthError {
	return &AuthError{
		Code:   CodeValidationError,
		Errors: map[string][]string{field: {message}},
	}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError carrying the same code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrUserNotFound   = &AuthError{Code: CodeUserNotFound}
	ErrInvalidCode    = &AuthError{Code: CodeInvalidCode}
	ErrExpiredCode    = &AuthError{Code: CodeExpiredCode}
	ErrMaxAttempts    = &AuthError{Code: CodeMaxAttempts}
	ErrCodeSendFailed = &AuthError{Code: CodeCodeSendFailed}
)

// CodeOf extracts the code of an AuthError, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
