package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const releaseRollbackTimeout = 5 * time.Second

// Conn is one pooled connection.
type Conn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Release()
}

// ConnSource hands out pooled connections.
type ConnSource interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PoolSource adapts a *pgxpool.Pool to ConnSource.
type PoolSource struct {
	Pool *pgxpool.Pool
}

func (p PoolSource) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Session is the connection context of one logical operation. The
// connection is acquired and the transaction begun on first use; every later
// statement of the operation runs on that same transaction. A Session
// belongs to a single operation and must not be used concurrently.
type Session struct {
	source ConnSource
	opts   pgx.TxOptions
	conn   Conn
	tx     pgx.Tx
	closed bool
}

func NewSession(source ConnSource, opts pgx.TxOptions) *Session {
	return &Session{source: source, opts: opts}
}

// Querier returns the session's transaction, opening it if needed.
func (s *Session) Querier(ctx context.Context) (Querier, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	if s.conn == nil {
		conn, err := s.source.Acquire(ctx)
		if err != nil {
			return nil, &ConnectionError{Err: err}
		}
		s.conn = conn
	}
	tx, err := s.conn.BeginTx(ctx, s.opts)
	if err != nil {
		return nil, &StatementError{Statement: "BEGIN", Err: err}
	}
	s.tx = tx
	return tx, nil
}

// Active reports whether a transaction is open.
func (s *Session) Active() bool {
	return s.tx != nil
}

// Commit commits the open transaction, if any, and closes the session to
// further statements.
func (s *Session) Commit(ctx context.Context) error {
	s.closed = true
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return &StatementError{Statement: "COMMIT", Err: err}
	}
	return nil
}

// Rollback aborts the open transaction, if any, and closes the session to
// further statements.
func (s *Session) Rollback(ctx context.Context) error {
	s.closed = true
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil {
		return &StatementError{Statement: "ROLLBACK", Err: err}
	}
	return nil
}

// Release rolls back a transaction left open and returns the connection to
// the pool. It is safe to call more than once.
func (s *Session) Release() {
	if s.tx != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseRollbackTimeout)
		_ = s.Rollback(ctx)
		cancel()
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// querierFor picks the operation's session when ctx carries one and falls
// back to the given querier otherwise.
func querierFor(ctx context.Context, fallback Querier) (Querier, error) {
	if s := SessionFrom(ctx); s != nil {
		return s.Querier(ctx)
	}
	return fallback, nil
}
