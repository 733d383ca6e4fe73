package notification

import (
	"context"
	"fmt"

	"phone-auth-service/internal/models"
)

type Kind string

const (
	KindLoginOTP          Kind = "login_otp"
	KindPhoneVerification Kind = "phone_verification"
)

type Message struct {
	Kind Kind
	Body string
}

// Notifier delivers a message to a user. Users without a contactable phone
// are skipped with a warning rather than failing the caller.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, msg Message) error
}

func LoginCodeMessage(code string) Message {
	return Message{
		Kind: KindLoginOTP,
		Body: fmt.Sprintf("Your login code is: %s\n\nThis code will expire in 10 minutes. If you did not request this code, please secure your account.", code),
	}
}

func VerificationCodeMessage(code string) Message {
	return Message{
		Kind: KindPhoneVerification,
		Body: fmt.Sprintf("Your verification code is: %s\n\nThis code will expire in 10 minutes. If you did not create an account, please ignore this message.", code),
	}
}
