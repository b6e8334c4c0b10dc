package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/ticket-ledger/internal/clock"
	"github.com/cimillas/ticket-ledger/internal/domain"
)

// Users is the account contract exposed to the transport layer.
type Users interface {
	CreateUser(ctx context.Context, name string) (domain.User, error)
	GetUser(ctx context.Context, userID int64) (domain.UserDetail, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

type UserRepository interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CreateUser(ctx context.Context, name string, createdAt time.Time) (int64, error)
	GetUser(ctx context.Context, userID int64) (domain.User, error)
}

// BalanceLister lists a user's holdings.
type BalanceLister interface {
	ListBalances(ctx context.Context, userID int64) ([]domain.EventQuantity, error)
}

type UserService struct {
	repo     UserRepository
	balances BalanceLister
	clock    clock.Clock
}

var _ Users = (*UserService)(nil)

func NewUserService(repo UserRepository, balances BalanceLister, clk clock.Clock) *UserService {
	return &UserService{
		repo:     repo,
		balances: balances,
		clock:    clk,
	}
}

func (s *UserService) CreateUser(ctx context.Context, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, domain.ErrNameRequired
	}

	user := domain.User{
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	id, err := s.repo.CreateUser(ctx, user.Name, user.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (domain.UserDetail, error) {
	if userID <= 0 {
		return domain.UserDetail{}, domain.ErrInvalidID
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return domain.UserDetail{}, err
	}
	tickets, err := s.balances.ListBalances(ctx, userID)
	if err != nil {
		return domain.UserDetail{}, err
	}
	return domain.UserDetail{User: user, Tickets: tickets}, nil
}

func (s *UserService) UserExists(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	return s.repo.UserExists(ctx, userID)
}
