package app

import (
	"context"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

// Transactor runs fn as one atomic operation: everything fn does through the
// context it receives commits together or not at all.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionalLedger runs every call of the wrapped Ledger in its own
// transaction. Calls made with a context that is already inside an
// operation join that operation's transaction.
type TransactionalLedger struct {
	next Ledger
	tx   Transactor
}

var _ Ledger = (*TransactionalLedger)(nil)

func NewTransactionalLedger(next Ledger, tx Transactor) *TransactionalLedger {
	return &TransactionalLedger{next: next, tx: tx}
}

func (l *TransactionalLedger) AddIfUserExists(ctx context.Context, userID, eventID int64, quantity int) (bool, error) {
	return inTx(ctx, l.tx, func(ctx context.Context) (bool, error) {
		return l.next.AddIfUserExists(ctx, userID, eventID, quantity)
	})
}

func (l *TransactionalLedger) Transfer(ctx context.Context, fromUserID, toUserID, eventID int64, quantity int) (bool, error) {
	return inTx(ctx, l.tx, func(ctx context.Context) (bool, error) {
		return l.next.Transfer(ctx, fromUserID, toUserID, eventID, quantity)
	})
}

func (l *TransactionalLedger) GetUserBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error) {
	return inTx(ctx, l.tx, func(ctx context.Context) ([]domain.EventQuantity, error) {
		return l.next.GetUserBalances(ctx, userID)
	})
}

// TransactionalUsers is the Users counterpart of TransactionalLedger.
type TransactionalUsers struct {
	next Users
	tx   Transactor
}

var _ Users = (*TransactionalUsers)(nil)

func NewTransactionalUsers(next Users, tx Transactor) *TransactionalUsers {
	return &TransactionalUsers{next: next, tx: tx}
}

func (u *TransactionalUsers) CreateUser(ctx context.Context, name string) (domain.User, error) {
	return inTx(ctx, u.tx, func(ctx context.Context) (domain.User, error) {
		return u.next.CreateUser(ctx, name)
	})
}

func (u *TransactionalUsers) GetUser(ctx context.Context, userID int64) (domain.UserDetail, error) {
	return inTx(ctx, u.tx, func(ctx context.Context) (domain.UserDetail, error) {
		return u.next.GetUser(ctx, userID)
	})
}

func (u *TransactionalUsers) UserExists(ctx context.Context, userID int64) (bool, error) {
	return inTx(ctx, u.tx, func(ctx context.Context) (bool, error) {
		return u.next.UserExists(ctx, userID)
	})
}

func inTx[T any](ctx context.Context, tx Transactor, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
