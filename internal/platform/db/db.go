package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"payslip/internal/platform/config"
)

// Connect opens the pool and pings it, retrying with exponential backoff
// up to cfg.DBConnectRetries times while the database comes up.
func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = int32(max(cfg.CalcWorkers*2, 4))
	poolCfg.MinConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second
	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := pool.Ping(pingCtx)
		if err != nil {
			slog.Warn("db ping failed", "attempt", attempt, "err", err)
		}
		return err
	}
	retries := uint64(max(cfg.DBConnectRetries, 0))
	if err := backoff.Retry(ping, backoff.WithContext(backoff.WithMaxRetries(expBackoff, retries), ctx)); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
