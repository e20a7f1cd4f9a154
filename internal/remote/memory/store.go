package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"fixedspend/internal/core"
	"fixedspend/internal/remote"
)

// Store keeps expense rows in memory and scopes every call to the session's
// user, the way row-level security does on the hosted service.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
	auth  *Auth
}

var _ remote.ExpenseStore = (*Store)(nil)

// NewStore creates an empty store. When auth is non-nil, calls are rejected
// unless the session's token was issued by it.
func NewStore(auth *Auth) *Store {
	return &Store{auth: auth}
}

// Seed appends rows as-is. Tests only.
func (s *Store) Seed(rows ...core.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, rows...)
}

func (s *Store) owner(sess remote.Session) (string, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return "", err
	}
	if s.auth != nil && !s.auth.Authorized(sess) {
		return "", remote.ErrNoSession
	}
	return uid, nil
}

func (s *Store) ListExpenses(_ context.Context, sess remote.Session) ([]core.Expense, error) {
	uid, err := s.owner(sess)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if e.UserID == uid {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	core.SortByPaymentDay(out)
	return out, nil
}

func (s *Store) ListAmounts(_ context.Context, sess remote.Session) ([]core.Whole, error) {
	uid, err := s.owner(sess)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Whole, 0, len(s.items))
	for _, e := range s.items {
		if e.UserID == uid {
			out = append(out, e.Amount)
		}
	}
	return out, nil
}

// InsertExpense stores the row under a fresh ID. Rows owned by someone else
// than the caller are rejected.
func (s *Store) InsertExpense(_ context.Context, sess remote.Session, e core.NewExpense) (core.Expense, error) {
	uid, err := s.owner(sess)
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != uid {
		return core.Expense{}, fmt.Errorf("insert expense for %q: %w", e.UserID, remote.ErrNoSession)
	}
	row := e.Expense(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, row)
	return row, nil
}

func (s *Store) DeleteExpense(_ context.Context, sess remote.Session, id string) error {
	uid, err := s.owner(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id && e.UserID == uid {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete expense %s: %w", id, remote.ErrNotFound)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
