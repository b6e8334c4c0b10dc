package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

type balanceKey struct {
	userID  int64
	eventID int64
}

type fakeTicketRepo struct {
	mu       sync.Mutex
	balances map[balanceKey]int
	locked   []int64
	listErr  error
	lockErr  error
	writeErr error
}

func newFakeTicketRepo(balances ...domain.TicketBalance) *fakeTicketRepo {
	repo := &fakeTicketRepo{balances: make(map[balanceKey]int)}
	for _, b := range balances {
		repo.balances[balanceKey{b.UserID, b.EventID}] = b.Quantity
	}
	return repo
}

func (r *fakeTicketRepo) GetBalanceForUpdate(_ context.Context, userID, eventID int64) (domain.TicketBalance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockErr != nil {
		return domain.TicketBalance{}, false, r.lockErr
	}
	r.locked = append(r.locked, userID)
	qty, ok := r.balances[balanceKey{userID, eventID}]
	if !ok {
		return domain.TicketBalance{}, false, nil
	}
	return domain.TicketBalance{UserID: userID, EventID: eventID, Quantity: qty}, true, nil
}

func (r *fakeTicketRepo) InsertBalance(_ context.Context, b domain.TicketBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.balances[balanceKey{b.UserID, b.EventID}] += b.Quantity
	return nil
}

func (r *fakeTicketRepo) UpdateQuantity(_ context.Context, userID, eventID int64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	key := balanceKey{userID, eventID}
	if _, ok := r.balances[key]; !ok {
		return fmt.Errorf("balance %d/%d: %w", userID, eventID, domain.ErrNotFound)
	}
	r.balances[key] = quantity
	return nil
}

func (r *fakeTicketRepo) ListBalances(_ context.Context, userID int64) ([]domain.EventQuantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := []domain.EventQuantity{}
	for key, qty := range r.balances {
		if key.userID == userID && qty > 0 {
			out = append(out, domain.EventQuantity{EventID: key.eventID, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (r *fakeTicketRepo) quantity(userID, eventID int64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qty, ok := r.balances[balanceKey{userID, eventID}]
	return qty, ok
}

type fakeUserRepo struct {
	users     map[int64]domain.User
	nextID    int64
	existsErr error
	createErr error
}

func newFakeUserRepo(ids ...int64) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]domain.User)}
	for _, id := range ids {
		repo.users[id] = domain.User{ID: id, Name: fmt.Sprintf("user-%d", id)}
		if id > repo.nextID {
			repo.nextID = id
		}
	}
	return repo
}

func (r *fakeUserRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.users[userID]
	return ok, nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, name string, createdAt time.Time) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	r.users[r.nextID] = domain.User{ID: r.nextID, Name: name, CreatedAt: createdAt}
	return r.nextID, nil
}

func (r *fakeUserRepo) GetUser(_ context.Context, userID int64) (domain.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

type txCtxKey struct{}

// fakeTransactor marks the context it hands to fn and records the outcome
// of every outermost call.
type fakeTransactor struct {
	begun     int
	commits   int
	rollbacks int
	commitErr error
}

func (f *fakeTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txCtxKey{}) != nil {
		return fn(ctx)
	}
	f.begun++
	txCtx := context.WithValue(ctx, txCtxKey{}, f.begun)
	if err := fn(txCtx); err != nil {
		f.rollbacks++
		return err
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

// probeLedger records whether it was called inside a transaction.
type probeLedger struct {
	Ledger
	insideTx  []bool
	returnErr error
}

func (p *probeLedger) AddIfUserExists(ctx context.Context, _, _ int64, _ int) (bool, error) {
	p.insideTx = append(p.insideTx, ctx.Value(txCtxKey{}) != nil)
	if p.returnErr != nil {
		return false, p.returnErr
	}
	return true, nil
}

func (p *probeLedger) GetUserBalances(ctx context.Context, _ int64) ([]domain.EventQuantity, error) {
	p.insideTx = append(p.insideTx, ctx.Value(txCtxKey{}) != nil)
	if p.returnErr != nil {
		return nil, p.returnErr
	}
	return []domain.EventQuantity{{EventID: 1, Quantity: 2}}, nil
}
