package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvLocal       = "local"
)

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"SERVER_PORT" envDefault:"8080"`
	TLSPort      int           `env:"SERVER_TLS_PORT" envDefault:"8443"`
	EnableTLS    bool          `env:"SERVER_ENABLE_TLS" envDefault:"false"`
	AutoCert     bool          `env:"SERVER_AUTO_CERT" envDefault:"false"`
	Domain       string        `env:"SERVER_DOMAIN" envDefault:"localhost"`
	CertFile     string        `env:"SERVER_CERT_FILE"`
	KeyFile      string        `env:"SERVER_KEY_FILE"`
	AutoCertDir  string        `env:"SERVER_AUTO_CERT_DIR" envDefault:"./certs"`
	Email        string        `env:"SERVER_ACME_EMAIL"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type RedisConfig struct {
	URL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	CAFile   string `env:"REDIS_TLS_CA_FILE" envDefault:"/app/certs/ca.crt"`
	CertFile string `env:"REDIS_TLS_CERT_FILE" envDefault:"/app/certs/redis.crt"`
	KeyFile  string `env:"REDIS_TLS_KEY_FILE" envDefault:"/app/certs/redis.key"`
}

type ScyllaConfig struct {
	Nodes    []string `env:"SCYLLA_NODES" envSeparator:"," envDefault:"localhost:9042"`
	Keyspace string   `env:"SCYLLA_KEYSPACE" envDefault:"phone_auth"`
	Username string   `env:"SCYLLA_USERNAME"`
	Password string   `env:"SCYLLA_PASSWORD"`
	CAPath   string   `env:"SCYLLA_CA_PATH"`
}

type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	SMSTopic      string   `env:"KAFKA_SMS_TOPIC" envDefault:"sms-notifications"`
	ConsumerGroup string   `env:"KAFKA_SMS_CONSUMER_GROUP" envDefault:"sms-worker"`
	TLS           bool     `env:"KAFKA_TLS" envDefault:"false"`
}

type ElasticsearchConfig struct {
	URL       string `env:"ELASTICSEARCH_URL"`
	Username  string `env:"ELASTICSEARCH_USERNAME"`
	Password  string `env:"ELASTICSEARCH_PASSWORD"`
	UserIndex string `env:"ELASTICSEARCH_USER_INDEX" envDefault:"users"`
}

type ClickhouseConfig struct {
	URL           string        `env:"CLICKHOUSE_URL"`
	Username      string        `env:"CLICKHOUSE_USERNAME" envDefault:"default"`
	Password      string        `env:"CLICKHOUSE_PASSWORD"`
	Database      string        `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	CAFile        string        `env:"CLICKHOUSE_CA_FILE"`
	BatchSize     int           `env:"AUDIT_BATCH_SIZE" envDefault:"200"`
	FlushInterval time.Duration `env:"AUDIT_FLUSH_INTERVAL" envDefault:"2s"`
}

type KMSConfig struct {
	Enabled bool   `env:"KMS_ENABLED" envDefault:"false"`
	KeyID   string `env:"KMS_KEY_ID"`
	Region  string `env:"AWS_REGION" envDefault:"us-east-1"`
}

// EncryptionConfig holds the local key used when KMS is disabled.
type EncryptionConfig struct {
	AppKey string `env:"APP_KEY"`
}

type BucketingConfig struct {
	UserBuckets int `env:"USER_BUCKETS" envDefault:"256"`
}

type AuthConfig struct {
	TokenName          string        `env:"AUTH_TOKEN_NAME" envDefault:"phone-auth-token"`
	TokenSecret        string        `env:"JWT_SECRET"`
	TokenTTL           time.Duration `env:"JWT_TTL" envDefault:"720h"`
	DefaultRegion      string        `env:"PHONE_DEFAULT_REGION" envDefault:"US"`
	CodeExpiry         time.Duration `env:"AUTH_CODE_EXPIRY" envDefault:"10m"`
	MaxAttempts        int           `env:"AUTH_CODE_MAX_ATTEMPTS" envDefault:"5"`
	CodeRetention      time.Duration `env:"AUTH_CODE_RETENTION" envDefault:"24h"`
	UsernameMaxRetries int           `env:"AUTH_USERNAME_MAX_ATTEMPTS" envDefault:"10"`
}

type SearchConfig struct {
	ResultsPerPage  int `env:"SEARCH_RESULTS_PER_PAGE" envDefault:"15"`
	MinSearchLength int `env:"SEARCH_MIN_LENGTH" envDefault:"2"`
}

type SMSConfig struct {
	Provider string `env:"SMS_PROVIDER" envDefault:"log"`
	Region   string `env:"AWS_SNS_REGION" envDefault:"us-east-1"`
}

// StagingBypassConfig carries magic values. They are only honoured when
// Environment is staging; Load clears them everywhere else.
type StagingBypassConfig struct {
	LoginOTP          string `env:"AUTH_OTP_BYPASS_MAGIC"`
	PhoneVerification string `env:"AUTH_PHONE_VERIFICATION_BYPASS_MAGIC"`
}

type Config struct {
	Environment   string `env:"APP_ENV" envDefault:"production"`
	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	Encryption    EncryptionConfig
	Bucketing     BucketingConfig
	Auth          AuthConfig
	Search        SearchConfig
	SMS           SMSConfig
	StagingBypass StagingBypassConfig
}

var (
	loaded *Config
	once   sync.Once
)

// LoadConfig reads .env (if present) and the process environment once.
func LoadConfig() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			panic("failed to load config: " + err.Error())
		}
		loaded = cfg
	})
	return loaded
}

// Get returns the config assembled by LoadConfig.
func Get() *Config {
	return LoadConfig()
}

// Load parses configuration without caching it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))

	if !cfg.IsStaging() {
		cfg.StagingBypass = StagingBypassConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.TokenSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !c.KMS.Enabled {
		if _, err := c.AppKeyBytes(); err != nil {
			return err
		}
	} else if c.KMS.KeyID == "" {
		return errors.New("KMS_KEY_ID is required when KMS is enabled")
	}
	if c.Auth.MaxAttempts <= 0 {
		return errors.New("AUTH_CODE_MAX_ATTEMPTS must be positive")
	}
	if c.Bucketing.UserBuckets <= 0 {
		return errors.New("USER_BUCKETS must be positive")
	}
	return nil
}

// AppKeyBytes decodes APP_KEY. Laravel style "base64:" prefixes are accepted.
func (c *Config) AppKeyBytes() ([]byte, error) {
	raw := strings.TrimPrefix(c.Encryption.AppKey, "base64:")
	if raw == "" {
		return nil, errors.New("APP_KEY is required when KMS is disabled")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("APP_KEY must be base64: %w", err)
	}
	if len(key) < 32 {
		return nil, errors.New("APP_KEY must decode to at least 32 bytes")
	}
	return key, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsStaging() bool {
	return c.Environment == EnvStaging
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment || c.Environment == EnvLocal
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
