package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is implemented by pgx.Tx, *pgxpool.Conn and *pgxpool.Pool so the
// executor can run against an operation's transaction or directly on the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Row is the accessor handed to a RowMapper. pgx.Row and pgx.Rows satisfy it.
type Row interface {
	Scan(dest ...any) error
}

// RowMapper turns the current row into a record.
type RowMapper[T any] func(Row) (T, error)

// ExecuteUpdate runs an insert, update or delete and returns the number of
// affected rows.
func ExecuteUpdate(ctx context.Context, q Querier, stmt string, args ...any) (int64, error) {
	if err := checkParams(stmt, args); err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, &StatementError{Statement: stmt, Err: err}
	}
	return tag.RowsAffected(), nil
}

// QueryMany returns every row of the result, mapped in order. The result is
// fully read and closed before returning, so q can be reused immediately.
func QueryMany[T any](ctx context.Context, q Querier, stmt string, mapper RowMapper[T], args ...any) ([]T, error) {
	if err := checkParams(stmt, args); err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &StatementError{Statement: stmt, Err: err}
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		rec, err := mapper(rows)
		if err != nil {
			return nil, &StatementError{Statement: stmt, Err: fmt.Errorf("map row %d: %w", len(out), err)}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StatementError{Statement: stmt, Err: err}
	}
	return out, nil
}

// QueryOne returns the first row of the result. ok is false when there are
// no rows; extra rows are ignored.
func QueryOne[T any](ctx context.Context, q Querier, stmt string, mapper RowMapper[T], args ...any) (rec T, ok bool, err error) {
	if err := checkParams(stmt, args); err != nil {
		return rec, false, err
	}
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return rec, false, &StatementError{Statement: stmt, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return rec, false, &StatementError{Statement: stmt, Err: err}
		}
		return rec, false, nil
	}
	rec, err = mapper(rows)
	if err != nil {
		var zero T
		return zero, false, &StatementError{Statement: stmt, Err: fmt.Errorf("map row: %w", err)}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		var zero T
		return zero, false, &StatementError{Statement: stmt, Err: err}
	}
	return rec, true, nil
}

// QueryScalar scans the single column of a single row result into a T.
// An empty result is a StatementError wrapping pgx.ErrNoRows.
func QueryScalar[T any](ctx context.Context, q Querier, stmt string, args ...any) (T, error) {
	var v T
	if err := checkParams(stmt, args); err != nil {
		return v, err
	}
	if err := q.QueryRow(ctx, stmt, args...).Scan(&v); err != nil {
		var zero T
		return zero, &StatementError{Statement: stmt, Err: err}
	}
	return v, nil
}

func checkParams(stmt string, args []any) error {
	if n := placeholderCount(stmt); n != len(args) {
		return &StatementError{
			Statement: stmt,
			Err:       fmt.Errorf("%w: statement uses %d, got %d", ErrParamCount, n, len(args)),
		}
	}
	return nil
}

// placeholderCount returns the highest $n placeholder index in stmt,
// skipping string literals, quoted identifiers, dollar-quoted bodies and
// comments.
func placeholderCount(stmt string) int {
	highest := 0
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; {
		case c == '\'' && isEscapeStringPrefix(stmt, i):
			i = skipEscapeString(stmt, i)
		case c == '\'' || c == '"':
			i = skipQuoted(stmt, i, c)
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			for i < len(stmt) && stmt[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			end := indexFrom(stmt, "*/", i+2)
			if end < 0 {
				return highest
			}
			i = end + 1
		case c == '$':
			j := i + 1
			n := 0
			for j < len(stmt) && stmt[j] >= '0' && stmt[j] <= '9' {
				n = n*10 + int(stmt[j]-'0')
				j++
			}
			if j > i+1 {
				if n > highest {
					highest = n
				}
				i = j - 1
				break
			}
			i = skipDollarQuoted(stmt, i)
		}
	}
	return highest
}

// skipQuoted returns the index of the closing quote of the literal opened at
// start. A doubled quote is an escaped quote.
func skipQuoted(stmt string, start int, quote byte) int {
	for i := start + 1; i < len(stmt); i++ {
		if stmt[i] != quote {
			continue
		}
		if i+1 < len(stmt) && stmt[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(stmt)
}

// isEscapeStringPrefix reports whether the quote at i opens an E'...' escape
// string, i.e. it follows a standalone E or e.
func isEscapeStringPrefix(stmt string, i int) bool {
	if i == 0 || (stmt[i-1] != 'E' && stmt[i-1] != 'e') {
		return false
	}
	if i == 1 {
		return true
	}
	prev := stmt[i-2]
	return !(prev == '_' || isLetter(prev) || (prev >= '0' && prev <= '9'))
}

// skipEscapeString returns the index of the closing quote of the escape
// string opened at start. A backslash escapes the next byte.
func skipEscapeString(stmt string, start int) int {
	for i := start + 1; i < len(stmt); i++ {
		switch stmt[i] {
		case '\\':
			i++
		case '\'':
			if i+1 < len(stmt) && stmt[i+1] == '\'' {
				i++
				continue
			}
			return i
		}
	}
	return len(stmt)
}

// skipDollarQuoted skips a $tag$...$tag$ body starting at start. A lone $
// that does not open a tag is left alone.
func skipDollarQuoted(stmt string, start int) int {
	j := start + 1
	for j < len(stmt) && (stmt[j] == '_' || isLetter(stmt[j]) || (j > start+1 && stmt[j] >= '0' && stmt[j] <= '9')) {
		j++
	}
	if j >= len(stmt) || stmt[j] != '$' {
		return start
	}
	tag := stmt[start : j+1]
	end := indexFrom(stmt, tag, j+1)
	if end < 0 {
		return len(stmt)
	}
	return end + len(tag) - 1
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	if i := strings.Index(s[from:], sub); i >= 0 {
		return from + i
	}
	return -1
}
