// Package remote declares the ports to the hosted backend that owns accounts,
// sessions and expense rows. Adapters live in the subpackages.
package remote

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"fixedspend/internal/core"
)

var (
	// ErrNoSession is returned when a call needs a credential and none is held.
	ErrNoSession = errors.New("no session")
	// ErrNotFound is returned when a row or user does not exist for the caller.
	ErrNotFound = errors.New("not found")
)

type (
	// User is the authenticated account as reported by the auth service.
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	// Session is the credential issued after sign-in. The token carries the
	// access token, refresh token and expiry.
	Session struct {
		Token *oauth2.Token
		User  User
	}
)

// Ports for outbound adapters.
type (
	Auth interface {
		// AuthorizeURL returns the provider sign-in URL. The provider redirects
		// back to redirectTo with a one-time code.
		AuthorizeURL(provider, redirectTo, challenge string) string
		// ExchangeCode trades the one-time code and PKCE verifier for a session.
		ExchangeCode(ctx context.Context, code, verifier string) (Session, error)
		Refresh(ctx context.Context, refreshToken string) (Session, error)
		GetUser(ctx context.Context, sess Session) (User, error)
		SignOut(ctx context.Context, sess Session) error
	}

	ExpenseStore interface {
		// ListExpenses returns every row visible to the session, ordered by
		// payment day ascending with absent days last.
		ListExpenses(ctx context.Context, sess Session) ([]core.Expense, error)
		// ListAmounts returns only the amount column of the visible rows.
		ListAmounts(ctx context.Context, sess Session) ([]core.Whole, error)
		InsertExpense(ctx context.Context, sess Session, e core.NewExpense) (core.Expense, error)
		DeleteExpense(ctx context.Context, sess Session, id string) error
	}

	// Pinger is implemented by adapters that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Present reports whether the session holds an access token.
func (s Session) Present() bool {
	return s.Token != nil && s.Token.AccessToken != ""
}

// Expired reports whether the access token must be refreshed before use.
// Tokens without an expiry never expire.
func (s Session) Expired(now time.Time) bool {
	if !s.Present() {
		return true
	}
	if s.Token.Expiry.IsZero() {
		return false
	}
	return !now.Before(s.Token.Expiry)
}

// Refreshable reports whether the session carries a refresh token.
func (s Session) Refreshable() bool {
	return s.Token != nil && s.Token.RefreshToken != ""
}

// AccessToken returns the bearer credential or an empty string.
func (s Session) AccessToken() string {
	if s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

// RequireUser returns the session's user ID or ErrNoSession.
func (s Session) RequireUser() (string, error) {
	if !s.Present() || s.User.ID == "" {
		return "", ErrNoSession
	}
	return s.User.ID, nil
}
