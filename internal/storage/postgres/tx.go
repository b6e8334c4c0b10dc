package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

// TxManager runs operations inside a single transaction each.
type TxManager struct {
	source  ConnSource
	opts    pgx.TxOptions
	timeout time.Duration
	logger  *zap.Logger
}

type TxOption func(*TxManager)

// WithOperationTimeout bounds every operation started by the manager.
func WithOperationTimeout(d time.Duration) TxOption {
	return func(m *TxManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTxOptions overrides the isolation and access mode of new transactions.
func WithTxOptions(opts pgx.TxOptions) TxOption {
	return func(m *TxManager) {
		m.opts = opts
	}
}

// WithLogger sets the logger used to report failed rollbacks.
func WithLogger(logger *zap.Logger) TxOption {
	return func(m *TxManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	return NewTxManagerWithSource(PoolSource{Pool: pool}, opts...)
}

func NewTxManagerWithSource(source ConnSource, opts ...TxOption) *TxManager {
	m := &TxManager{
		source: source,
		opts:   pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTx runs fn with a context carrying the operation's session. fn's
// statements share one transaction that is committed when fn returns nil and
// rolled back when it returns an error or panics; the connection is released
// on every path. A ctx that already carries a session joins it instead of
// opening a second transaction. fn's error is returned unchanged.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if SessionFrom(ctx) != nil {
		return fn(ctx)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	s := NewSession(m.source, m.opts)
	defer s.Release()

	defer func() {
		if p := recover(); p != nil {
			m.rollback(ctx, s, zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(WithSession(ctx, s)); err != nil {
		m.rollback(ctx, s, zap.NamedError("cause", err))
		return err
	}

	if err := s.Commit(ctx); err != nil {
		return storageError("commit", err)
	}
	return nil
}

func (m *TxManager) rollback(ctx context.Context, s *Session, cause zap.Field) {
	if !s.Active() {
		_ = s.Rollback(ctx)
		return
	}
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.Rollback(rbCtx); err != nil {
		m.logger.Warn("rollback failed", zap.Error(err), cause)
	}
}
