package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fixedspend/internal/cache"
	"fixedspend/internal/remote"
	"fixedspend/internal/remote/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, c.Event)
}

type fixture struct {
	gate  *Gate
	auth  *memory.Auth
	store *Store
	now   time.Time
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), rec: &recorder{}}
	clock := func() time.Time { return f.now }

	f.auth = memory.NewAuth("kim@example.com", time.Minute)
	f.auth.SetClock(clock)
	f.store = NewStore(10, 24*time.Hour)
	f.gate = NewGate(f.auth, f.store, nil, Config{}, nil)
	f.gate.SetClock(clock)
	f.gate.Subscribe(f.rec.listen)
	return f
}

func cookieNamed(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signIn runs the full sign-in round trip and returns the session cookie.
func (f *fixture) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	f.gate.SignIn(w, httptest.NewRequest(http.MethodGet, SignInPath, nil))
	res := w.Result()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	pkce := cookieNamed(res, DefaultPKCECookie)
	require.NotNil(t, pkce)

	loc, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCallbackPath, loc.Path)

	req := httptest.NewRequest(http.MethodGet, DefaultCallbackPath+"?"+loc.RawQuery, nil)
	req.AddCookie(pkce)
	w = httptest.NewRecorder()
	f.gate.Callback(w, req)
	res = w.Result()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, HomePath, res.Header.Get("Location"))

	c := cookieNamed(res, DefaultCookieName)
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	return c
}

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sess.User.Email))
	})
}

func TestRequireRedirectsWithoutSession(t *testing.T) {
	f := newFixture(t)
	h := f.gate.Require(protected())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/ui/expenses", nil)
	req.Header.Set("HX-Request", "true")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("HX-Redirect"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSignInFlowGrantsAccess(t *testing.T) {
	f := newFixture(t)
	cookie := f.signIn(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.gate.Require(protected()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kim@example.com", w.Body.String())
	assert.Equal(t, []Event{EventSignedIn}, f.rec.events)
}

func TestCallbackRejectsMissingVerifierAndProviderErrors(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.gate.Callback(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=dev-x", nil))
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	w = httptest.NewRecorder()
	f.gate.Callback(w, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil))
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=unknown", nil)
	req.AddCookie(&http.Cookie{Name: DefaultPKCECookie, Value: oauth2.GenerateVerifier()})
	w = httptest.NewRecorder()
	f.gate.Callback(w, req)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	assert.Equal(t, 0, f.store.Size())
	assert.Empty(t, f.rec.events)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	f := newFixture(t)
	cookie := f.signIn(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	before, ok := f.gate.Current(req)
	require.True(t, ok)

	f.now = f.now.Add(5 * time.Minute)
	after, ok := f.gate.Current(req)
	require.True(t, ok)
	assert.NotEqual(t, before.AccessToken(), after.AccessToken())
	assert.Equal(t, before.User, after.User)
	assert.Equal(t, []Event{EventSignedIn, EventTokenRefreshed}, f.rec.events)
}

type failingRefresh struct{ *memory.Auth }

func (failingRefresh) Refresh(context.Context, string) (remote.Session, error) {
	return remote.Session{}, errors.New("refresh rejected")
}

func TestFailedRefreshDropsSession(t *testing.T) {
	f := newFixture(t)
	cookie := f.signIn(t)
	f.gate.auth = failingRefresh{f.auth}

	f.now = f.now.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, ok := f.gate.Current(req)
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.Size())
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	cookie := f.signIn(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.gate.SignOut(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
	cleared := cookieNamed(w.Result(), DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	_, ok := f.gate.Current(req)
	assert.False(t, ok)
	assert.Equal(t, []Event{EventSignedIn, EventSignedOut}, f.rec.events)
}

func TestCallbackURL(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, SignInPath, nil)
	req.Host = "spend.local:8080"
	assert.Equal(t, "http://spend.local:8080/auth/callback", f.gate.CallbackURL(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://spend.local:8080/auth/callback", f.gate.CallbackURL(req))

	g := NewGate(f.auth, f.store, nil, Config{PublicBaseURL: "https://spend.example.com/"}, nil)
	assert.Equal(t, "https://spend.example.com/auth/callback", g.CallbackURL(req))
}

func TestNotifierUnsubscribe(t *testing.T) {
	n := NewNotifier()
	var got []Event
	unsub := n.Subscribe(func(_ context.Context, c Change) { got = append(got, c.Event) })

	n.Notify(context.Background(), Change{Event: EventSignedIn})
	unsub()
	unsub()
	n.Notify(context.Background(), Change{Event: EventSignedOut})

	assert.Equal(t, []Event{EventSignedIn}, got)
}

func TestEvictedSessionIsReportedAsSignOut(t *testing.T) {
	n := NewNotifier()
	var got []Change
	n.Subscribe(func(_ context.Context, c Change) { got = append(got, c) })

	store := NewStore(1, time.Hour, cache.WithEvictionHook(EvictionNotifier(n, nil)))
	first := store.Create(remote.Session{User: remote.User{ID: "u1"}})
	store.Create(remote.Session{User: remote.User{ID: "u2"}})

	_, ok := store.Get(first)
	assert.False(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, EventSignedOut, got[0].Event)
	assert.Equal(t, "u1", got[0].User.ID)
}
