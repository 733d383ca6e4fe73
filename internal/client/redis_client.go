package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/util"
)

// RedisClient owns the shared connection pool used by the verification
// code stores and the session cache.
type RedisClient struct {
	Client *redis.Client
	probe  string
}

// NewRedisClient dials Redis. rediss:// URLs enable TLS, with mutual auth
// when the configured certificate files exist.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*RedisClient, error) {
	rc := cfg.Redis

	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Password == "" {
		opts.Password = rc.Password
	}
	if rc.DB != 0 {
		opts.DB = rc.DB
	}

	opts.PoolSize = rc.PoolSize
	opts.MinIdleConns = rc.PoolSize / 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	if opts.TLSConfig != nil {
		files := tlsFiles{ServerName: opts.TLSConfig.ServerName}
		if fileExists(rc.CAFile) {
			files.CAFile = rc.CAFile
		}
		if fileExists(rc.CertFile) && fileExists(rc.KeyFile) {
			files.CertFile, files.KeyFile = rc.CertFile, rc.KeyFile
		}
		if opts.TLSConfig, err = files.config(); err != nil {
			return nil, fmt.Errorf("redis tls: %w", err)
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	util.Info("Redis client initialized",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("pool_size", opts.PoolSize),
		zap.Bool("tls_enabled", opts.TLSConfig != nil))

	return &RedisClient{
		Client: client,
		probe:  "healthcheck:" + uuid.NewString(),
	}, nil
}

func (r *RedisClient) Close() error {
	if r.Client == nil {
		return nil
	}
	if err := r.Client.Close(); err != nil {
		util.Error("failed to close Redis client", zap.Error(err))
		return err
	}
	util.Info("Redis client closed")
	return nil
}

// HealthCheck verifies the pool can write and read back a value. The probe
// key is unique per process so parallel replicas do not race each other.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	want := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.Client.Set(ctx, r.probe, want, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write probe failed: %w", err)
	}

	val, err := r.Client.Get(ctx, r.probe).Result()
	if err != nil {
		return fmt.Errorf("redis read probe failed: %w", err)
	}
	if val != want {
		return fmt.Errorf("redis read probe mismatch")
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
