package notification

import (
	"context"

	"go.uber.org/zap"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

// SMSNotifier sends synchronously through a provider.
type SMSNotifier struct {
	provider SMSProvider
}

func NewSMSNotifier(provider SMSProvider) *SMSNotifier {
	return &SMSNotifier{provider: provider}
}

func (n *SMSNotifier) Notify(ctx context.Context, user *models.User, msg Message) error {
	if !user.Contactable() {
		util.Warn("No phone number found for SMS notification",
			zap.String("user_id", user.UserID),
			zap.String("kind", string(msg.Kind)))
		return nil
	}
	return n.provider.Send(ctx, user.Phone, msg.Body)
}
