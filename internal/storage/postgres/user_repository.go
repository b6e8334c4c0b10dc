package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

type UserRepository struct {
	pool Querier
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.CreatedAt)
	return u, err
}

func (r *UserRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return false, storageError("check user", err)
	}
	exists, err := QueryScalar[bool](ctx, q, query, userID)
	if err != nil {
		return false, storageError("check user", err)
	}
	return exists, nil
}

// CreateUser inserts a user and returns the generated id. The id is read
// back with lastval() on the same connection, so ctx must carry the
// operation's session.
func (r *UserRepository) CreateUser(ctx context.Context, name string, createdAt time.Time) (int64, error) {
	const stmt = `INSERT INTO users (name, created_at) VALUES ($1, $2)`
	const lastID = `SELECT lastval()`

	s := SessionFrom(ctx)
	if s == nil {
		return 0, storageError("create user", ErrNoSession)
	}
	q, err := s.Querier(ctx)
	if err != nil {
		return 0, storageError("create user", err)
	}
	if _, err := ExecuteUpdate(ctx, q, stmt, name, createdAt); err != nil {
		return 0, storageError("create user", err)
	}
	id, err := QueryScalar[int64](ctx, q, lastID)
	if err != nil {
		return 0, storageError("read user id", err)
	}
	return id, nil
}

func (r *UserRepository) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	const query = `SELECT id, name, created_at FROM users WHERE id = $1`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return domain.User{}, storageError("get user", err)
	}
	u, ok, err := QueryOne(ctx, q, query, scanUser, userID)
	if err != nil {
		return domain.User{}, storageError("get user", err)
	}
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}
