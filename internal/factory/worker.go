package factory

import (
	"context"
	"fmt"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/config"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/util"
)

// WorkerFactory wires the SMS worker. It needs only Kafka, the phone cipher
// and an SMS provider, so it skips the stores the API process connects to.
type WorkerFactory struct {
	base     *Factory
	consumer *client.KafkaConsumer
}

func NewWorkerFactory(ctx context.Context) (*WorkerFactory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	base := &Factory{config: cfg, closed: make(chan struct{})}
	if cfg.KMS.Enabled || cfg.SMS.Provider == "sns" {
		if err := base.initializeAWS(ctx); err != nil {
			return nil, fmt.Errorf("aws: %w", err)
		}
	}
	if err := base.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	consumer, err := client.NewKafkaConsumer(cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}

	util.Info("Worker factory initialized",
		util.String("environment", cfg.Environment),
		util.String("sms_provider", cfg.SMS.Provider))

	return &WorkerFactory{base: base, consumer: consumer}, nil
}

func (w *WorkerFactory) Worker() *notification.Worker {
	return notification.NewWorker(w.consumer, w.base.encryptionManager, w.base.smsProvider())
}

func (w *WorkerFactory) Close() error {
	if err := w.consumer.Close(); err != nil {
		util.Error("Failed to close Kafka consumer", util.ErrorField(err))
	}
	return w.base.Close()
}
