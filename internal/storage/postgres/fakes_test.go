package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves a fixed result set. Unused pgx.Rows methods panic through
// the nil embedded interface.
type fakeRows struct {
	pgx.Rows
	data    [][]any
	pos     int
	err     error
	closed  bool
	scanErr error
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assign(r.data[r.pos-1], dest)
}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Close() { r.closed = true }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer {
			return errors.New("scan: target is not a pointer")
		}
		target.Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

// fakeQuerier records statements and replays canned results.
type fakeQuerier struct {
	statements []string
	args       [][]any
	rows       *fakeRows
	row        fakeRow
	affected   int64
	err        error
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	if q.err != nil {
		return pgconn.CommandTag{}, q.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", q.affected)), nil
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	if q.err != nil {
		return nil, q.err
	}
	if q.rows == nil {
		return &fakeRows{}, nil
	}
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	return q.row
}

func (q *fakeQuerier) record(sql string, args []any) {
	q.statements = append(q.statements, sql)
	q.args = append(q.args, args)
}

// fakeTx is a pgx.Tx whose outcome is recorded.
type fakeTx struct {
	pgx.Tx
	fakeQuerier
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.fakeQuerier.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.fakeQuerier.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.fakeQuerier.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.commits++
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rollbacks++
	return t.rollbackErr
}

type fakeConn struct {
	tx       *fakeTx
	begins   int
	beginErr error
	released int
	opts     pgx.TxOptions
}

func (c *fakeConn) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	c.begins++
	c.opts = opts
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *fakeConn) Release() {
	c.released++
}

type fakeSource struct {
	conn       *fakeConn
	acquired   int
	acquireErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{conn: &fakeConn{tx: &fakeTx{}}}
}

func (s *fakeSource) Acquire(context.Context) (Conn, error) {
	s.acquired++
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return s.conn, nil
}
