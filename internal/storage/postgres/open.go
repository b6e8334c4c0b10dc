package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/ticket-ledger/internal/config"
)

// Open parses the connectivity settings, creates the process-wide pool and
// verifies that the store is reachable. It is called once at startup.
func Open(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	pcfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Err: err}
	}
	return pool, nil
}

// PoolConfig maps cfg onto a pgxpool configuration. Lock and statement
// timeouts are applied as session parameters of every pooled connection.
func PoolConfig(cfg config.Database) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("parse database url: %w", err)}
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	params := pcfg.ConnConfig.RuntimeParams
	if cfg.LockTimeout > 0 {
		params["lock_timeout"] = millis(cfg.LockTimeout)
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = millis(cfg.StatementTimeout)
	}
	return pcfg, nil
}

func millis(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
