// Package memory provides in-process stand-ins for the hosted auth service and
// row store. They are used for local development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"fixedspend/internal/remote"
)

// Auth signs every visitor in as a single development user. The authorize
// step redirects straight back with a one-time code bound to the PKCE challenge.
type Auth struct {
	mu       sync.Mutex
	user     remote.User
	tokenTTL time.Duration
	now      func() time.Time
	codes    map[string]string // code -> challenge
	access   map[string]string // access token -> user ID
	refresh  map[string]string // refresh token -> user ID
}

var _ remote.Auth = (*Auth)(nil)

// ErrInvalidGrant is returned for unknown codes, verifiers or refresh tokens.
var ErrInvalidGrant = errors.New("invalid grant")

// NewAuth creates a dev auth service for the given email. An empty email
// yields a user without one.
func NewAuth(email string, tokenTTL time.Duration) *Auth {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Auth{
		user:     remote.User{ID: devUserID(email), Email: email},
		tokenTTL: tokenTTL,
		now:      time.Now,
		codes:    make(map[string]string),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
	}
}

// devUserID derives a stable ID from the email so rows kept in a durable
// store survive restarts.
func devUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fixedspend:dev:"+email)).String()
}

// SetClock overrides the time source. Tests only.
func (a *Auth) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// User returns the development user.
func (a *Auth) User() remote.User {
	return a.user
}

// AuthorizeURL issues a code and returns redirectTo with it attached.
func (a *Auth) AuthorizeURL(_, redirectTo, challenge string) string {
	code := "dev-" + uuid.NewString()
	a.mu.Lock()
	a.codes[code] = challenge
	a.mu.Unlock()

	u, err := url.Parse(redirectTo)
	if err != nil {
		return redirectTo
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *Auth) ExchangeCode(_ context.Context, code, verifier string) (remote.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	challenge, ok := a.codes[code]
	if !ok {
		return remote.Session{}, fmt.Errorf("exchange code: %w", ErrInvalidGrant)
	}
	delete(a.codes, code)
	if challenge != "" && oauth2.S256ChallengeFromVerifier(verifier) != challenge {
		return remote.Session{}, fmt.Errorf("exchange code: verifier mismatch: %w", ErrInvalidGrant)
	}
	return a.issueLocked(), nil
}

func (a *Auth) Refresh(_ context.Context, refreshToken string) (remote.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.refresh[refreshToken]; !ok {
		return remote.Session{}, fmt.Errorf("refresh token: %w", ErrInvalidGrant)
	}
	delete(a.refresh, refreshToken)
	return a.issueLocked(), nil
}

func (a *Auth) GetUser(_ context.Context, sess remote.Session) (remote.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !sess.Present() {
		return remote.User{}, remote.ErrNoSession
	}
	if _, ok := a.access[sess.AccessToken()]; !ok {
		return remote.User{}, remote.ErrNoSession
	}
	if sess.Expired(a.now()) {
		return remote.User{}, fmt.Errorf("token expired: %w", remote.ErrNoSession)
	}
	return a.user, nil
}

func (a *Auth) SignOut(_ context.Context, sess remote.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sess.Token == nil {
		return nil
	}
	delete(a.access, sess.Token.AccessToken)
	delete(a.refresh, sess.Token.RefreshToken)
	return nil
}

// Authorized reports whether the access token was issued and not revoked.
func (a *Auth) Authorized(sess remote.Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.access[sess.AccessToken()]
	return ok && !sess.Expired(a.now())
}

func (a *Auth) issueLocked() remote.Session {
	tok := &oauth2.Token{
		AccessToken:  uuid.NewString(),
		TokenType:    "bearer",
		RefreshToken: uuid.NewString(),
		Expiry:       a.now().Add(a.tokenTTL),
	}
	a.access[tok.AccessToken] = a.user.ID
	a.refresh[tok.RefreshToken] = a.user.ID
	return remote.Session{Token: tok, User: a.user}
}
