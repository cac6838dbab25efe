package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joyfill/joydoc"
)

// DSN builds a postgres:// connection string. password overrides the
// configured password when set, e.g. with an IAM token.
func DSN(cfg joydoc.StoreConfig, password string) string {
	if password == "" {
		password = cfg.Password
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// NewPool creates and pings a connection pool.
func NewPool(ctx context.Context, cfg joydoc.StoreConfig, password string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg, password))
	if err != nil {
		return nil, joydoc.NewConfigError("store", "failed to parse connection string").WithCause(err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, joydoc.NewError(joydoc.ErrorTypeStore, joydoc.ErrCodeConnectionFailed, "failed to create connection pool").WithCause(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, joydoc.NewError(joydoc.ErrorTypeStore, joydoc.ErrCodeConnectionFailed, "failed to ping database").WithCause(err)
	}
	return pool, nil
}
