package app

import (
	"context"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

// Ledger is the ticket balance contract exposed to the transport layer.
type Ledger interface {
	AddIfUserExists(ctx context.Context, userID, eventID int64, quantity int) (bool, error)
	Transfer(ctx context.Context, fromUserID, toUserID, eventID int64, quantity int) (bool, error)
	GetUserBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error)
}

type TicketRepository interface {
	GetBalanceForUpdate(ctx context.Context, userID, eventID int64) (domain.TicketBalance, bool, error)
	InsertBalance(ctx context.Context, b domain.TicketBalance) error
	UpdateQuantity(ctx context.Context, userID, eventID int64, quantity int) error
	ListBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error)
}

// UserChecker reports whether an account exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// LedgerService mutates balances. It expects to run inside the transaction
// of the calling operation (see TransactionalLedger) and never commits or
// rolls back itself.
type LedgerService struct {
	tickets TicketRepository
	users   UserChecker
}

var _ Ledger = (*LedgerService)(nil)

func NewLedgerService(tickets TicketRepository, users UserChecker) *LedgerService {
	return &LedgerService{
		tickets: tickets,
		users:   users,
	}
}

func (s *LedgerService) AddIfUserExists(ctx context.Context, userID, eventID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	if quantity > domain.MaxQuantity {
		return false, domain.ErrQuantityTooLarge
	}
	if userID <= 0 || eventID <= 0 {
		return false, domain.ErrInvalidID
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return false, err
	}

	current, ok, err := s.tickets.GetBalanceForUpdate(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	if !ok {
		err = s.tickets.InsertBalance(ctx, domain.TicketBalance{
			UserID:   userID,
			EventID:  eventID,
			Quantity: quantity,
		})
	} else {
		if quantity > domain.MaxQuantity-current.Quantity {
			return false, domain.ErrQuantityTooLarge
		}
		err = s.tickets.UpdateQuantity(ctx, userID, eventID, current.Quantity+quantity)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Transfer moves quantity tickets of eventID between two users. Both balance
// rows are locked in ascending user id order so opposite transfers between
// the same pair cannot deadlock.
func (s *LedgerService) Transfer(ctx context.Context, fromUserID, toUserID, eventID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	if fromUserID <= 0 || toUserID <= 0 || eventID <= 0 {
		return false, domain.ErrInvalidID
	}
	if fromUserID == toUserID {
		return false, domain.ErrSelfTransfer
	}
	if err := s.requireUser(ctx, toUserID); err != nil {
		return false, err
	}

	balances := make(map[int64]domain.TicketBalance, 2)
	for _, userID := range lockOrder(fromUserID, toUserID) {
		b, ok, err := s.tickets.GetBalanceForUpdate(ctx, userID, eventID)
		if err != nil {
			return false, err
		}
		if ok {
			balances[userID] = b
		}
	}

	src, ok := balances[fromUserID]
	if !ok || src.Quantity < quantity {
		return false, domain.ErrInsufficientQuantity
	}
	dst, dstExists := balances[toUserID]
	if dstExists && quantity > domain.MaxQuantity-dst.Quantity {
		return false, domain.ErrQuantityTooLarge
	}

	if err := s.tickets.UpdateQuantity(ctx, fromUserID, eventID, src.Quantity-quantity); err != nil {
		return false, err
	}
	var err error
	if dstExists {
		err = s.tickets.UpdateQuantity(ctx, toUserID, eventID, dst.Quantity+quantity)
	} else {
		err = s.tickets.InsertBalance(ctx, domain.TicketBalance{
			UserID:   toUserID,
			EventID:  eventID,
			Quantity: quantity,
		})
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetUserBalances lists the user's non-zero balances ordered by event id.
func (s *LedgerService) GetUserBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidID
	}
	return s.tickets.ListBalances(ctx, userID)
}

func (s *LedgerService) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return nil
}

func lockOrder(a, b int64) [2]int64 {
	if b < a {
		return [2]int64{b, a}
	}
	return [2]int64{a, b}
}
