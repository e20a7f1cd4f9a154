// Package session guards protected pages: it holds the credential issued by
// the auth service behind an opaque cookie, refreshes it when it expires, and
// drives the sign-in and sign-out flows.
package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

const (
	DefaultCookieName   = "fs_session"
	DefaultPKCECookie   = "fs_pkce"
	DefaultProvider     = "kakao"
	DefaultCallbackPath = "/auth/callback"
	LoginPath           = "/login"
	SignInPath          = "/auth/signin"
	HomePath            = "/"

	pkceCookieTTL = 10 * time.Minute
)

type contextKey string

const sessionKey contextKey = "session"

// Config controls cookies and the OAuth round trip.
type Config struct {
	CookieName     string
	PKCECookieName string
	Secure         bool
	Provider       string
	// PublicBaseURL is the externally visible origin. When empty the callback
	// URL is derived from the request.
	PublicBaseURL string
}

// Gate checks and manages the per-browser session.
type Gate struct {
	auth     remote.Auth
	store    *Store
	notifier *Notifier
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
	refresh  singleflight.Group
}

// NewGate wires the gate. A nil notifier gets a private one.
func NewGate(auth remote.Auth, store *Store, notifier *Notifier, cfg Config, logger *log.Logger) *Gate {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.PKCECookieName == "" {
		cfg.PKCECookieName = DefaultPKCECookie
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if notifier == nil {
		notifier = NewNotifier()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Gate{
		auth:     auth,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentSession),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Subscribe registers an auth state listener.
func (g *Gate) Subscribe(fn Listener) (unsubscribe func()) {
	return g.notifier.Subscribe(fn)
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess remote.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session placed by Require.
func FromContext(ctx context.Context) (remote.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(remote.Session)
	return sess, ok && sess.Present()
}

// Current returns the live session for the request, refreshing an expired
// access token when possible. A failed refresh drops the session.
func (g *Gate) Current(r *http.Request) (remote.Session, bool) {
	id := g.cookieID(r)
	sess, ok := g.store.Get(id)
	if !ok || !sess.Present() {
		return remote.Session{}, false
	}
	if !sess.Expired(g.now()) {
		return sess, true
	}
	if !sess.Refreshable() {
		g.store.Delete(id)
		return remote.Session{}, false
	}

	v, err, _ := g.refresh.Do(id, func() (interface{}, error) {
		// Another request may have refreshed while we waited.
		if cur, ok := g.store.Get(id); ok && !cur.Expired(g.now()) {
			return cur, nil
		}
		fresh, err := g.auth.Refresh(r.Context(), sess.Token.RefreshToken)
		if err != nil {
			return nil, err
		}
		if fresh.User.ID == "" {
			fresh.User = sess.User
		}
		if !g.store.Replace(id, fresh) {
			return nil, remote.ErrNoSession
		}
		g.notifier.Notify(r.Context(), Change{Event: EventTokenRefreshed, User: fresh.User})
		return fresh, nil
	})
	if err != nil {
		log.FromContext(r.Context(), g.logger).WarnContext(r.Context(), "Session refresh failed, dropping session",
			log.FieldOperation, log.OpRefresh,
			log.FieldUserID, sess.User.ID,
			log.FieldError, err)
		g.store.Delete(id)
		return remote.Session{}, false
	}
	return v.(remote.Session), true
}

// Require sends visitors without a session to the login page. HTMX requests
// get an HX-Redirect instead of a 303.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.Current(r)
		if !ok {
			if g.cookieID(r) != "" {
				g.clearCookie(w, g.cfg.CookieName)
			}
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", LoginPath)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// SignIn starts the PKCE flow: the verifier goes into a short-lived cookie and
// the browser is sent to the provider.
func (g *Gate) SignIn(w http.ResponseWriter, r *http.Request) {
	verifier := oauth2.GenerateVerifier()
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.PKCECookieName,
		Value:    verifier,
		Path:     DefaultCallbackPath,
		MaxAge:   int(pkceCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   g.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	target := g.auth.AuthorizeURL(g.cfg.Provider, g.CallbackURL(r), oauth2.S256ChallengeFromVerifier(verifier))
	log.FromContext(r.Context(), g.logger).InfoContext(r.Context(), "Sign-in started", log.FieldOperation, log.OpSignIn, "provider", g.cfg.Provider)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Callback completes the PKCE flow and stores the new session.
func (g *Gate) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	g.clearCookie(w, g.cfg.PKCECookieName)

	if e := q.Get("error"); e != "" {
		log.FromContext(ctx, g.logger).WarnContext(ctx, "Provider returned an error",
			log.FieldOperation, log.OpSignIn,
			log.FieldError, e,
			"description", q.Get("error_description"))
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	verifier := ""
	if c, err := r.Cookie(g.cfg.PKCECookieName); err == nil {
		verifier = c.Value
	}
	if code == "" || verifier == "" {
		log.FromContext(ctx, g.logger).WarnContext(ctx, "Callback without code or verifier",
			log.FieldOperation, log.OpSignIn,
			"has_code", code != "",
			"has_verifier", verifier != "")
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	sess, err := g.auth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		log.FromContext(ctx, g.logger).ErrorContext(ctx, "Code exchange failed", log.FieldOperation, log.OpSignIn, log.FieldError, err)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	id := g.store.Create(sess)
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(g.store.TTL() / time.Second),
		HttpOnly: true,
		Secure:   g.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	log.FromContext(ctx, g.logger).InfoContext(ctx, "Signed in", log.FieldOperation, log.OpSignIn, log.FieldUserID, sess.User.ID)
	g.notifier.Notify(ctx, Change{Event: EventSignedIn, User: sess.User})
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

// SignOut revokes the credential remotely (best effort), forgets it locally
// and returns to the login page.
func (g *Gate) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := g.cookieID(r)
	sess, ok := g.store.Get(id)
	if ok {
		if err := g.auth.SignOut(ctx, sess); err != nil {
			log.FromContext(ctx, g.logger).WarnContext(ctx, "Remote sign-out failed", log.FieldOperation, log.OpSignOut, log.FieldError, err)
		}
		g.store.Delete(id)
	}
	g.clearCookie(w, g.cfg.CookieName)
	if ok {
		log.FromContext(ctx, g.logger).InfoContext(ctx, "Signed out", log.FieldOperation, log.OpSignOut, log.FieldUserID, sess.User.ID)
		g.notifier.Notify(ctx, Change{Event: EventSignedOut, User: sess.User})
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", LoginPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// CallbackURL is where the provider sends the browser back to.
func (g *Gate) CallbackURL(r *http.Request) string {
	if g.cfg.PublicBaseURL != "" {
		return g.cfg.PublicBaseURL + DefaultCallbackPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: DefaultCallbackPath}
	return u.String()
}

func (g *Gate) cookieID(r *http.Request) string {
	c, err := r.Cookie(g.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (g *Gate) clearCookie(w http.ResponseWriter, name string) {
	path := "/"
	if name == g.cfg.PKCECookieName {
		path = DefaultCallbackPath
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IsNoSession reports whether err means the caller must sign in again.
func IsNoSession(err error) bool {
	return errors.Is(err, remote.ErrNoSession)
}
