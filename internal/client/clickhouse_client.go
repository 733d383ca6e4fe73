package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/util"
)

// ClickHouseClient writes audit rows. It exposes only what the audit
// recorder needs: DDL, batched inserts and a ping.
type ClickHouseClient struct {
	conn     driver.Conn
	database string
}

// NewClickHouseClient creates a new ClickHouse client with TLS support
func NewClickHouseClient(ctx context.Context, cfg *config.Config) (*ClickHouseClient, error) {
	chConfig := cfg.Clickhouse

	ep, err := parseClickhouseURL(chConfig.URL)
	if err != nil {
		return nil, err
	}

	opts := &ch.Options{
		Addr: []string{ep.addr},
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	}

	if ep.secure || cfg.IsProduction() {
		tlsConfig, err := tlsFiles{ServerName: ep.host, CAFile: chConfig.CAFile}.config()
		if err != nil {
			return nil, fmt.Errorf("clickhouse tls: %w", err)
		}
		opts.TLS = tlsConfig
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	util.Info("ClickHouse client initialized",
		zap.String("addr", ep.addr),
		zap.String("database", chConfig.Database),
		zap.Bool("tls_enabled", opts.TLS != nil),
	)

	return &ClickHouseClient{conn: conn, database: chConfig.Database}, nil
}

func (c *ClickHouseClient) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.Exec(ctx, query, args...)
}

// BatchInsert sends rows in a single native protocol batch.
func (c *ClickHouseClient) BatchInsert(ctx context.Context, query string, rows [][]interface{}) error {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for i, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	return batch.Send()
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		util.Error("Failed to close ClickHouse connection", zap.Error(err))
		return err
	}
	util.Info("ClickHouse connection closed", zap.String("database", c.database))
	return nil
}

type clickhouseEndpoint struct {
	addr   string
	host   string
	secure bool
}

// parseClickhouseURL accepts http(s)://, clickhouse:// or a bare host[:port].
// Missing ports default to the native protocol ports 9000 and 9440.
func parseClickhouseURL(raw string) (clickhouseEndpoint, error) {
	if !strings.Contains(raw, "://") {
		raw = "clickhouse://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return clickhouseEndpoint{}, fmt.Errorf("invalid CLICKHOUSE_URL: %w", err)
	}
	if u.Hostname() == "" {
		return clickhouseEndpoint{}, fmt.Errorf("invalid CLICKHOUSE_URL: missing host")
	}

	ep := clickhouseEndpoint{host: u.Hostname(), secure: u.Scheme == "https"}
	port := u.Port()
	if port == "" {
		port = "9000"
		if ep.secure {
			port = "9440"
		}
	}
	ep.addr = net.JoinHostPort(ep.host, port)
	return ep, nil
}
