package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

var (
	// ErrParamCount is returned when the arguments do not match the
	// statement's positional placeholders.
	ErrParamCount = errors.New("parameter count mismatch")
	// ErrSessionClosed is returned by a session that was committed, rolled
	// back or released.
	ErrSessionClosed = errors.New("session closed")
	// ErrNoSession is returned by statements that need the operation's
	// session when ctx carries none.
	ErrNoSession = errors.New("no session in context")
)

const (
	codeNumericOutOfRange    = "22003"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeAdminShutdown        = "57P01"
)

var credentialsPattern = regexp.MustCompile(`://[^@\s]+@`)

// ConnectionError reports that the store could not be reached or refused
// the credentials.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "database connection: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StatementError wraps a failure executing one statement.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %q: %v", summarize(e.Statement), e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

func summarize(stmt string) string {
	s := strings.Join(strings.Fields(stmt), " ")
	const max = 72
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// storageError converts a lower layer failure into a *domain.StorageError.
// Errors that are already storage errors pass through unchanged.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{Op: op, Kind: storageKind(err), Err: err}
}

func storageKind(err error) domain.StorageKind {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return domain.KindUnavailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeQueryCanceled:
			return domain.KindTimeout
		case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation,
			codeSerializationFailure, codeDeadlockDetected:
			return domain.KindConflict
		case codeAdminShutdown:
			return domain.KindUnavailable
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return domain.KindUnavailable
		}
		return domain.KindFailure
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return domain.KindTimeout
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return domain.KindUnavailable
	}
	return domain.KindFailure
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func isNumericOutOfRange(err error) bool {
	return hasCode(err, codeNumericOutOfRange)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Redact hides credentials in a connection string so it can be logged.
func Redact(dsn string) string {
	return credentialsPattern.ReplaceAllString(dsn, "://***@")
}
