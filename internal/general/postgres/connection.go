package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"transport-connect/internal/general/config"
	"transport-connect/internal/general/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DSN builds the connection string from cfg.
func DSN(cfg *config.Config) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Database.Host, strconv.Itoa(cfg.Database.Port)),
		Path:   "/" + cfg.Database.Name,
		User:   url.UserPassword(cfg.Database.User, cfg.Database.Password),
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool configures pgxpool, verifies connectivity, and returns the pool.
func NewPool(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	start := time.Now()

	log.Info(ctx, "db_config_check", "Effective DB connection parameters", map[string]any{
		"host":           cfg.Database.Host,
		"port":           cfg.Database.Port,
		"user":           cfg.Database.User,
		"database":       cfg.Database.Name,
		"password_empty": cfg.Database.Password == "",
	})

	pcfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}
	pcfg.ConnConfig.ConnectTimeout = 5 * time.Second
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = make(map[string]string, 1)
	}
	pcfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	log.Info(ctx, "db_connected", "Connected to PostgreSQL database", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return pool, nil
}

// EnsureSchema creates missing tables and indexes. Statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
