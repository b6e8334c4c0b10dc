package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

type TicketRepository struct {
	pool Querier
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func scanBalance(row Row) (domain.TicketBalance, error) {
	var b domain.TicketBalance
	err := row.Scan(&b.UserID, &b.EventID, &b.Quantity)
	return b, err
}

func scanEventQuantity(row Row) (domain.EventQuantity, error) {
	var eq domain.EventQuantity
	err := row.Scan(&eq.EventID, &eq.Quantity)
	return eq, err
}

// GetBalanceForUpdate reads the (user, event) balance and holds its row lock
// until the operation's transaction ends. ok is false when no row exists.
func (r *TicketRepository) GetBalanceForUpdate(ctx context.Context, userID, eventID int64) (domain.TicketBalance, bool, error) {
	const query = `
SELECT user_id, event_id, quantity
FROM tickets
WHERE user_id = $1 AND event_id = $2
FOR UPDATE`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return domain.TicketBalance{}, false, storageError("lock balance", err)
	}
	b, ok, err := QueryOne(ctx, q, query, scanBalance, userID, eventID)
	if err != nil {
		return domain.TicketBalance{}, false, storageError("lock balance", err)
	}
	return b, ok, nil
}

// InsertBalance creates the balance row. If a concurrent operation created
// the row first, the quantity is added to it instead.
func (r *TicketRepository) InsertBalance(ctx context.Context, b domain.TicketBalance) error {
	const stmt = `
INSERT INTO tickets (user_id, event_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, event_id)
DO UPDATE SET quantity = tickets.quantity + EXCLUDED.quantity`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return storageError("insert balance", err)
	}
	if _, err := ExecuteUpdate(ctx, q, stmt, b.UserID, b.EventID, b.Quantity); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		// the ON CONFLICT add can overflow when concurrent first grants meet
		if isNumericOutOfRange(err) {
			return domain.ErrQuantityTooLarge
		}
		return storageError("insert balance", err)
	}
	return nil
}

// UpdateQuantity sets the quantity of an existing balance row. The caller
// must hold the row lock.
func (r *TicketRepository) UpdateQuantity(ctx context.Context, userID, eventID int64, quantity int) error {
	const stmt = `UPDATE tickets SET quantity = $3 WHERE user_id = $1 AND event_id = $2`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return storageError("update balance", err)
	}
	n, err := ExecuteUpdate(ctx, q, stmt, userID, eventID, quantity)
	if err != nil {
		return storageError("update balance", err)
	}
	if n == 0 {
		return fmt.Errorf("update balance user=%d event=%d: %w", userID, eventID, domain.ErrNotFound)
	}
	return nil
}

// ListBalances returns the user's non-zero balances ordered by event.
func (r *TicketRepository) ListBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error) {
	const query = `
SELECT event_id, quantity
FROM tickets
WHERE user_id = $1 AND quantity > 0
ORDER BY event_id ASC`

	q, err := querierFor(ctx, r.pool)
	if err != nil {
		return nil, storageError("list balances", err)
	}
	out, err := QueryMany(ctx, q, query, scanEventQuantity, userID)
	if err != nil {
		return nil, storageError("list balances", err)
	}
	return out, nil
}
