package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/encryption"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

// Envelope is the queued form of an SMS. Phone and body are both PhoneCipher
// ciphertexts so codes never sit on the topic in plaintext.
type Envelope struct {
	UserID         string    `json:"user_id"`
	Kind           Kind      `json:"kind"`
	PhoneEncrypted string    `json:"phone_encrypted"`
	BodyEncrypted  string    `json:"body_encrypted"`
	QueuedAt       time.Time `json:"queued_at"`
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaNotifier hands messages to the SMS worker through Kafka.
type KafkaNotifier struct {
	publisher Publisher
	cipher    encryption.PhoneCipher
	clock     func() time.Time
}

func NewKafkaNotifier(publisher Publisher, cipher encryption.PhoneCipher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, cipher: cipher, clock: time.Now}
}

func (n *KafkaNotifier) Notify(ctx context.Context, user *models.User, msg Message) error {
	if user.PhoneEncrypted == "" || !user.Contactable() {
		util.Warn("No phone number found for SMS notification",
			zap.String("user_id", user.UserID),
			zap.String("kind", string(msg.Kind)))
		return nil
	}

	body, err := n.cipher.Encrypt(ctx, msg.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt sms body: %w", err)
	}

	payload, err := json.Marshal(Envelope{
		UserID:         user.UserID,
		Kind:           msg.Kind,
		PhoneEncrypted: user.PhoneEncrypted,
		BodyEncrypted:  body,
		QueuedAt:       n.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms envelope: %w", err)
	}

	// Keyed by user so one user's messages stay ordered on a partition.
	if err := n.publisher.Publish(ctx, []byte(user.UserID), payload, map[string]string{"kind": string(msg.Kind)}); err != nil {
		return fmt.Errorf("failed to queue sms: %w", err)
	}
	return nil
}
