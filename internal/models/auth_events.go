package models

import "time"

const (
	EventRegistered       = "registered"
	EventLoginCodeSent    = "login_code_sent"
	EventLoggedIn         = "logged_in"
	EventLoggedOut        = "logged_out"
	EventPhoneVerified    = "phone_verified"
	EventVerificationSent = "verification_code_sent"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent is one row of the auth_events audit table.
type AuthEvent struct {
	EventID    string    `ch:"event_id"`
	EventType  string    `ch:"event_type"`
	UserID     string    `ch:"user_id"`
	PhoneHash  string    `ch:"phone_hash"`
	Outcome    string    `ch:"outcome"`
	ErrorCode  string    `ch:"error_code"`
	OccurredAt time.Time `ch:"occurred_at"`
}
