package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fixedspend/internal/amqp"
	"fixedspend/internal/core"
	"fixedspend/internal/remote"
	"fixedspend/internal/remote/memory"
	"fixedspend/internal/session"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.Event
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, ev amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingStore fails every call.
type failingStore struct{ err error }

func (f failingStore) ListExpenses(context.Context, remote.Session) ([]core.Expense, error) {
	return nil, f.err
}
func (f failingStore) ListAmounts(context.Context, remote.Session) ([]core.Whole, error) {
	return nil, f.err
}
func (f failingStore) InsertExpense(context.Context, remote.Session, core.NewExpense) (core.Expense, error) {
	return core.Expense{}, f.err
}
func (f failingStore) DeleteExpense(context.Context, remote.Session, string) error { return f.err }

func userSession(id string) remote.Session {
	return remote.Session{Token: &oauth2.Token{AccessToken: "t-" + id}, User: remote.User{ID: id, Email: id + "@example.com"}}
}

func TestExpenseService_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub, nil)
	sess := userSession("u1")

	row, err := svc.Create(ctx, sess, core.ExpenseInput{ServiceName: "Netflix", Amount: "15000", PaymentDay: "5"})
	require.NoError(t, err)
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, core.WholeOf(15000), row.Amount)
	assert.Equal(t, core.WholeOf(5), row.PaymentDay)

	_, err = svc.Create(ctx, sess, core.ExpenseInput{ServiceName: "Gym", Amount: "50000", PaymentDay: "1", Category: "건강"})
	require.NoError(t, err)

	list, err := svc.List(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, int64(65000), list.Total)
	assert.Equal(t, "Gym", list.Items[0].ServiceName)

	require.NoError(t, svc.Delete(ctx, sess, row.ID))
	list, err = svc.List(ctx, sess)
	require.NoError(t, err)
	for _, e := range list.Items {
		assert.NotEqual(t, row.ID, e.ID)
	}

	assert.Equal(t, []amqp.EventType{amqp.ExpenseCreated, amqp.ExpenseCreated, amqp.ExpenseDeleted}, pub.types())
}

func TestExpenseService_EmptyList(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(nil), nil, nil)

	list, err := svc.List(context.Background(), userSession("u1"))
	require.NoError(t, err)
	assert.True(t, list.Empty())
	assert.Equal(t, int64(0), list.Total)
}

func TestExpenseService_IncompleteInputIsNoop(t *testing.T) {
	store := memory.NewStore(nil)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub, nil)
	sess := userSession("u1")

	inputs := []core.ExpenseInput{
		{Amount: "1", PaymentDay: "1"},
		{ServiceName: "X", PaymentDay: "1"},
		{ServiceName: "X", Amount: "1"},
	}
	for _, in := range inputs {
		_, err := svc.Create(context.Background(), sess, in)
		assert.ErrorIs(t, err, core.ErrIncompleteInput)
	}

	list, err := svc.List(context.Background(), sess)
	require.NoError(t, err)
	assert.True(t, list.Empty())
	assert.Empty(t, pub.types())
}

func TestExpenseService_CoercesWithoutRangeChecks(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(nil), nil, nil)

	row, err := svc.Create(context.Background(), userSession("u1"),
		core.ExpenseInput{ServiceName: "Odd", Amount: "12abc", PaymentDay: "45"})
	require.NoError(t, err)
	assert.Equal(t, core.WholeOf(12), row.Amount)
	assert.Equal(t, core.WholeOf(45), row.PaymentDay)

	row, err = svc.Create(context.Background(), userSession("u1"),
		core.ExpenseInput{ServiceName: "Nan", Amount: "abc", PaymentDay: "x"})
	require.NoError(t, err)
	assert.False(t, row.Amount.Valid)
	assert.False(t, row.PaymentDay.Valid)
}

func TestExpenseService_StoreFailures(t *testing.T) {
	boom := errors.New("remote down")
	pub := &fakePublisher{}
	svc := NewExpenseService(failingStore{err: boom}, pub, nil)
	sess := userSession("u1")

	_, err := svc.List(context.Background(), sess)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Create(context.Background(), sess, core.ExpenseInput{ServiceName: "X", Amount: "1", PaymentDay: "1"})
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.Delete(context.Background(), sess, "e1"), boom)
	assert.Empty(t, pub.types())
}

func TestExpenseService_PublishFailureDoesNotFailCreate(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(memory.NewStore(nil), pub, nil)

	_, err := svc.Create(context.Background(), userSession("u1"), core.ExpenseInput{ServiceName: "X", Amount: "1", PaymentDay: "1"})
	require.NoError(t, err)
	assert.Len(t, pub.types(), 1)
}

func TestExpenseService_RequiresSession(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(nil), nil, nil)

	_, err := svc.Create(context.Background(), remote.Session{}, core.ExpenseInput{ServiceName: "X", Amount: "1", PaymentDay: "1"})
	assert.ErrorIs(t, err, remote.ErrNoSession)
	assert.ErrorIs(t, svc.Delete(context.Background(), remote.Session{}, "e1"), remote.ErrNoSession)
}

func TestSessionEventForwarder(t *testing.T) {
	pub := &fakePublisher{}
	fwd := SessionEventForwarder(pub, nil)
	user := remote.User{ID: "u1", Email: "kim@example.com"}

	fwd(context.Background(), session.Change{Event: session.EventSignedIn, User: user})
	fwd(context.Background(), session.Change{Event: session.EventTokenRefreshed, User: user})
	fwd(context.Background(), session.Change{Event: session.EventSignedOut, User: user})

	assert.Equal(t, []amqp.EventType{amqp.SessionSignedIn, amqp.SessionSignedOut}, pub.types())
	assert.Equal(t, "kim@example.com", pub.events[0].Email)
}

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	auth := memory.NewAuth("", time.Hour)
	store := memory.NewStore(auth)
	sess := signInMemory(t, auth)

	expenses := NewExpenseService(store, nil, nil)
	for _, in := range []core.ExpenseInput{
		{ServiceName: "Netflix", Amount: "15000", PaymentDay: "5"},
		{ServiceName: "Gym", Amount: "50000", PaymentDay: "25"},
		{ServiceName: "Broken", Amount: "n/a", PaymentDay: "1"},
	} {
		_, err := expenses.Create(ctx, sess, in)
		require.NoError(t, err)
	}

	profiles := NewProfileService(auth, store, nil)
	p, err := profiles.Load(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, DefaultDisplayName, p.Email)
	assert.True(t, p.TotalKnown)

	list, err := expenses.List(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, list.Total, p.Total)
	assert.Equal(t, int64(65000), p.Total)
}

func TestProfileService_AmountFailureLeavesZero(t *testing.T) {
	auth := memory.NewAuth("kim@example.com", time.Hour)
	sess := signInMemory(t, auth)

	p, err := NewProfileService(auth, failingStore{err: errors.New("down")}, nil).Load(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", p.Email)
	assert.Equal(t, int64(0), p.Total)
	assert.False(t, p.TotalKnown)
}

func TestProfileService_UserFailure(t *testing.T) {
	auth := memory.NewAuth("kim@example.com", time.Hour)
	_, err := NewProfileService(auth, memory.NewStore(nil), nil).Load(context.Background(), userSession("ghost"))
	assert.ErrorIs(t, err, remote.ErrNoSession)
}

func signInMemory(t *testing.T, auth *memory.Auth) remote.Session {
	t.Helper()
	verifier := oauth2.GenerateVerifier()
	raw := auth.AuthorizeURL("kakao", "http://localhost/auth/callback", oauth2.S256ChallengeFromVerifier(verifier))
	u, err := url.Parse(raw)
	require.NoError(t, err)
	sess, err := auth.ExchangeCode(context.Background(), u.Query().Get("code"), verifier)
	require.NoError(t, err)
	return sess
}
