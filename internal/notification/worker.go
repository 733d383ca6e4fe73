package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"phone-auth-service/internal/encryption"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/util"
)

type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Worker drains queued SMS envelopes and sends them. Messages that cannot
// be decoded or decrypted are committed and dropped.
type Worker struct {
	consumer   Consumer
	cipher     encryption.PhoneCipher
	provider   SMSProvider
	maxRetries int
	backoff    time.Duration
	maxAge     time.Duration
	clock      func() time.Time
}

func NewWorker(consumer Consumer, cipher encryption.PhoneCipher, provider SMSProvider) *Worker {
	return &Worker{
		consumer:   consumer,
		cipher:     cipher,
		provider:   provider,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		maxAge:     10 * time.Minute,
		clock:      time.Now,
	}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (w *Worker) Run(ctx context.Context) error {
	util.Info("SMS worker started")
	for {
		msg, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				util.Info("SMS worker stopped")
				return nil
			}
			return err
		}

		w.handle(ctx, msg)

		if err := w.consumer.Commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			util.Error("Failed to commit sms message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		util.Error("Dropping malformed sms envelope", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	// The code inside is already expired, so sending it would only confuse.
	if !env.QueuedAt.IsZero() && w.clock().Sub(env.QueuedAt) > w.maxAge {
		util.Warn("Dropping stale sms", zap.String("user_id", env.UserID), zap.Time("queued_at", env.QueuedAt))
		return
	}

	to, ok := w.cipher.Decrypt(ctx, env.PhoneEncrypted)
	if !ok {
		util.Warn("No contactable phone for queued sms", zap.String("user_id", env.UserID))
		return
	}
	body, ok := w.cipher.Decrypt(ctx, env.BodyEncrypted)
	if !ok {
		util.Error("Dropping sms with undecryptable body", zap.String("user_id", env.UserID))
		return
	}

	for attempt := 1; ; attempt++ {
		err := w.provider.Send(ctx, to, body)
		if err == nil {
			return
		}
		if attempt >= w.maxRetries || errors.Is(err, context.Canceled) {
			util.Error("Giving up on sms",
				zap.String("user_id", env.UserID),
				zap.String("phone", phone.Mask(to)),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
}
