package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"golang.org/x/sync/errgroup"

	"phone-auth-service/internal/audit"
	"phone-auth-service/internal/bucketing"
	"phone-auth-service/internal/bypass"
	"phone-auth-service/internal/client"
	"phone-auth-service/internal/config"
	"phone-auth-service/internal/encryption"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/repository/elastic"
	"phone-auth-service/internal/repository/redis"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/service"
	"phone-auth-service/internal/tls"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/username"
	"phone-auth-service/internal/util"
	"phone-auth-service/internal/verification"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	kmsClient        *kms.Client
	snsClient        *sns.Client

	// Managers
	hasher            hashing.PhoneHasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	userRepository *scylla.UserRepository
	userIndex      *elastic.UserIndex
	auditRecorder  *audit.ClickHouseRecorder
	tokenIssuer    *token.JWTIssuer
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory(ctx context.Context) (*Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg)
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := f.initializeClients(initCtx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeManagers(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	if f.clickhouseClient != nil {
		if err := audit.EnsureSchema(initCtx, f.clickhouseClient); err != nil {
			util.Warn("Audit table unavailable", util.ErrorField(err))
		}
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("kafka_enabled", f.kafkaProducer != nil),
		util.Bool("search_enabled", f.esClient != nil),
		util.Bool("audit_enabled", f.clickhouseClient != nil),
	)

	return f, nil
}

// initializeClients connects required stores and whichever optional ones are
// configured. Optional clients that fail are dropped outside production.
func (f *Factory) initializeClients(ctx context.Context) error {
	var err error

	if f.redisClient, err = client.NewRedisClient(ctx, f.config); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if f.scyllaClient, err = scylla.NewScyllaClient(f.config); err != nil {
		return fmt.Errorf("scylla: %w", err)
	}

	var optional []error

	if len(f.config.Kafka.Brokers) > 0 {
		if f.kafkaProducer, err = client.NewKafkaProducer(f.config); err != nil {
			optional = append(optional, fmt.Errorf("kafka: %w", err))
		}
	}
	if f.config.Elasticsearch.URL != "" {
		if f.esClient, err = client.NewElasticsearchClient(ctx, f.config); err != nil {
			optional = append(optional, fmt.Errorf("elasticsearch: %w", err))
		}
	}
	if f.config.Clickhouse.URL != "" {
		if f.clickhouseClient, err = client.NewClickHouseClient(ctx, f.config); err != nil {
			optional = append(optional, fmt.Errorf("clickhouse: %w", err))
		}
	}

	if f.config.KMS.Enabled || f.config.SMS.Provider == "sns" {
		if err := f.initializeAWS(ctx); err != nil {
			return fmt.Errorf("aws: %w", err)
		}
	}

	if len(optional) > 0 {
		joined := errors.Join(optional...)
		if f.config.IsProduction() {
			return joined
		}
		util.Warn("Optional service initialization failed", util.ErrorField(joined))
	}

	if err := f.HealthCheck(ctx); err != nil {
		if f.config.IsProduction() {
			return err
		}
		util.Warn("Initial health check failed", util.ErrorField(err))
	}
	return nil
}

func (f *Factory) initializeAWS(ctx context.Context) error {
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("load kms config: %w", err)
		}
		f.kmsClient = kms.NewFromConfig(awsCfg)
	}
	if f.config.SMS.Provider == "sns" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.SMS.Region))
		if err != nil {
			return fmt.Errorf("load sns config: %w", err)
		}
		f.snsClient = sns.NewFromConfig(awsCfg)
	}
	return nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers() error {
	f.hasher = hashing.NewPhoneHasher()
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	var kmsAPI encryption.KMSAPI
	if f.kmsClient != nil {
		kmsAPI = f.kmsClient
	}
	em, err := encryption.NewEncryptionManager(f.config, kmsAPI)
	if err != nil {
		return err
	}
	f.encryptionManager = em
	return nil
}

func (f *Factory) UserRepository() *scylla.UserRepository {
	if f.userRepository == nil {
		f.userRepository = scylla.NewUserRepository(
			f.scyllaClient,
			f.hasher,
			f.encryptionManager,
			f.bucketingManager,
		)
	}
	return f.userRepository
}

// UserIndex returns nil when Elasticsearch is not configured.
func (f *Factory) UserIndex() *elastic.UserIndex {
	if f.userIndex == nil && f.esClient != nil {
		f.userIndex = elastic.NewUserIndex(f.esClient, f.config.Elasticsearch.UserIndex)
	}
	return f.userIndex
}

func (f *Factory) TokenIssuer() *token.JWTIssuer {
	if f.tokenIssuer == nil {
		f.tokenIssuer = token.NewJWTIssuer(
			f.config.Auth.TokenSecret,
			f.config.Auth.TokenTTL,
			redis.NewSessionCache(f.redisClient.Client),
		)
	}
	return f.tokenIssuer
}

func (f *Factory) smsProvider() notification.SMSProvider {
	if f.snsClient != nil {
		return notification.NewSNSProvider(f.snsClient)
	}
	return notification.NewLogProvider(f.config.IsDevelopment())
}

// Notifier queues SMS on Kafka when a producer is available and otherwise
// sends inline.
func (f *Factory) Notifier() notification.Notifier {
	if f.kafkaProducer != nil {
		return notification.NewKafkaNotifier(f.kafkaProducer, f.encryptionManager)
	}
	return notification.NewSMSNotifier(f.smsProvider())
}

func (f *Factory) AuditRecorder() audit.Recorder {
	if f.clickhouseClient == nil {
		return audit.NopRecorder{}
	}
	if f.auditRecorder == nil {
		f.auditRecorder = audit.NewClickHouseRecorder(
			f.clickhouseClient,
			f.config.Clickhouse.BatchSize,
			f.config.Clickhouse.FlushInterval,
		)
	}
	return f.auditRecorder
}

func (f *Factory) checker(purpose verification.Purpose) *verification.Checker {
	store := redis.NewVerificationCodeStore(f.redisClient.Client, purpose, f.config.Auth.CodeRetention, time.Now)
	return verification.NewChecker(store,
		verification.WithExpiry(f.config.Auth.CodeExpiry),
		verification.WithMaxAttempts(f.config.Auth.MaxAttempts),
	)
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory != nil {
		return f.serviceFactory
	}

	deps := service.Dependencies{
		Users:           f.UserRepository(),
		Normalizer:      phone.NewE164Normalizer(f.config.Auth.DefaultRegion),
		Hasher:          f.hasher,
		LoginCodes:      f.checker(verification.PurposeLogin),
		PhoneCodes:      f.checker(verification.PurposePhoneVerification),
		Usernames:       username.NewGenerator(f.config.Auth.UsernameMaxRetries),
		Tokens:          f.TokenIssuer(),
		TokenName:       f.config.Auth.TokenName,
		Notifier:        f.Notifier(),
		Bypass:          bypass.FromConfig(f.config),
		Audit:           f.AuditRecorder(),
		SearchPerPage:   f.config.Search.ResultsPerPage,
		SearchMinLength: f.config.Search.MinSearchLength,
	}
	// Left as an untyped nil so the services see "no index".
	if idx := f.UserIndex(); idx != nil {
		deps.Index = idx
	}

	f.serviceFactory = service.NewServiceFactory(deps)
	return f.serviceFactory
}

// HealthCheck pings every initialized store concurrently.
func (f *Factory) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	check := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				return fmt.Errorf("%s health check: %w", name, err)
			}
			return nil
		})
	}

	if f.redisClient != nil {
		check("redis", f.redisClient.HealthCheck)
	}
	if f.scyllaClient != nil {
		check("scylla", f.scyllaClient.HealthCheck)
	}
	if f.esClient != nil {
		check("elasticsearch", f.esClient.HealthCheck)
	}
	if f.clickhouseClient != nil {
		check("clickhouse", f.clickhouseClient.HealthCheck)
	}
	if f.kafkaProducer != nil {
		check("kafka", f.kafkaProducer.HealthCheck)
	}
	return g.Wait()
}

// EnsureSearchIndex creates the user index mapping if it is missing.
func (f *Factory) EnsureSearchIndex(ctx context.Context) {
	idx := f.UserIndex()
	if idx == nil {
		return
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		util.Warn("Failed to ensure user index", util.ErrorField(err))
	}
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.auditRecorder != nil {
			if err := f.auditRecorder.Close(); err != nil {
				util.Error("Failed to flush audit events", util.ErrorField(err))
			}
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) EncryptionManager() *encryption.EncryptionManager {
	return f.encryptionManager
}

func (f *Factory) SMSProvider() notification.SMSProvider {
	return f.smsProvider()
}
