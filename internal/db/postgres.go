package db

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open opens a pooled Postgres connection using the given DSN and pings it. Caller must call Close when done.
// When deployMode is true the connection uses TLS without certificate verification, matching the hosted
// database the service is deployed against.
func Open(ctx context.Context, dsn string, deployMode bool) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if deployMode {
		cfg.ConnConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		cfg.ConnConfig.Fallbacks = nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
