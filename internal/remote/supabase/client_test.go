package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fixedspend/internal/core"
	"fixedspend/internal/remote"
)

const (
	testKey  = "anon-key"
	testUser = "8d0e5b8e-3f0a-4c55-9a59-0c6f0f3f1a11"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, testKey, WithHTTPClient(srv.Client()),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	require.NoError(t, err)
	return c
}

func session(token string) remote.Session {
	return remote.Session{
		Token: &oauth2.Token{AccessToken: token},
		User:  remote.User{ID: testUser, Email: "a@b.c"},
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New("not a url", testKey)
	assert.Error(t, err)
	_, err = New("https://x.supabase.co", "")
	assert.Error(t, err)
}

func TestAuthorizeURL(t *testing.T) {
	c, err := New("https://proj.supabase.co/", testKey)
	require.NoError(t, err)

	raw := c.AuthorizeURL("kakao", "http://localhost:8080/auth/callback", "chal")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	assert.Equal(t, "kakao", u.Query().Get("provider"))
	assert.Equal(t, "http://localhost:8080/auth/callback", u.Query().Get("redirect_to"))
	assert.Equal(t, "chal", u.Query().Get("code_challenge"))
	assert.Equal(t, "s256", u.Query().Get("code_challenge_method"))
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		assert.Equal(t, testKey, r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "code-1", body["auth_code"])
		assert.Equal(t, "verifier-1", body["code_verifier"])

		_, _ = io.WriteString(w, `{"access_token":"at","token_type":"bearer","expires_in":3600,"refresh_token":"rt","user":{"id":"`+testUser+`","email":"kim@example.com"}}`)
	})

	sess, err := c.ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken())
	assert.Equal(t, "rt", sess.Token.RefreshToken)
	assert.Equal(t, testUser, sess.User.ID)
	assert.Equal(t, "kim@example.com", sess.User.Email)
	assert.Equal(t, time.Unix(1_700_000_000+3600, 0), sess.Token.Expiry)
}

func TestExchangeCodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"code expired"}`)
	})

	_, err := c.ExchangeCode(context.Background(), "code", "v")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_grant", apiErr.Code)
	assert.Equal(t, "code expired", apiErr.Message)
}

func TestRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"at2","expires_at":1700009999,"refresh_token":"rt2","user":{"id":"`+testUser+`"}}`)
	})

	sess, err := c.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", sess.AccessToken())
	assert.Equal(t, time.Unix(1700009999, 0), sess.Token.Expiry)

	_, err = c.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, remote.ErrNoSession)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"`+testUser+`","email":"kim@example.com"}`)
	})

	u, err := c.GetUser(context.Background(), session("good"))
	require.NoError(t, err)
	assert.Equal(t, testUser, u.ID)
	assert.Equal(t, "kim@example.com", u.Email)

	_, err = c.GetUser(context.Background(), session("bad"))
	assert.ErrorIs(t, err, remote.ErrNoSession)

	_, err = c.GetUser(context.Background(), remote.Session{})
	assert.ErrorIs(t, err, remote.ErrNoSession)
}

func TestSignOut(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SignOut(context.Background(), session("at")))
	assert.True(t, called)
}

func TestListExpenses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/expenses", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "payment_day.asc.nullslast", r.URL.Query().Get("order"))
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[
			{"id":7,"user_id":"u1","service_name":"Netflix","amount":15000,"payment_day":5,"category":"OTT"},
			{"id":"b2","user_id":"u1","service_name":"Gym","amount":null,"payment_day":null,"category":null}
		]`)
	})

	got, err := c.ListExpenses(context.Background(), session("at"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.Expense{ID: "7", UserID: "u1", ServiceName: "Netflix", Amount: core.WholeOf(15000), PaymentDay: core.WholeOf(5), Category: "OTT"}, got[0])
	assert.Equal(t, "b2", got[1].ID)
	assert.False(t, got[1].Amount.Valid)
	assert.Empty(t, got[1].Category)
}

func TestListAmounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "amount", r.URL.Query().Get("select"))
		_, _ = io.WriteString(w, `[{"amount":15000},{"amount":null},{"amount":4500}]`)
	})

	got, err := c.ListAmounts(context.Background(), session("at"))
	require.NoError(t, err)
	assert.Equal(t, int64(19500), core.Total(got))
}

func TestInsertExpense(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "u1", rows[0]["user_id"])
		assert.Equal(t, "Netflix", rows[0]["service_name"])
		assert.Equal(t, float64(15000), rows[0]["amount"])
		assert.Equal(t, float64(5), rows[0]["payment_day"])
		assert.Nil(t, rows[0]["category"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"e1","user_id":"u1","service_name":"Netflix","amount":15000,"payment_day":5,"category":null}]`)
	})

	got, err := c.InsertExpense(context.Background(), session("at"), core.NewExpense{
		UserID: "u1", ServiceName: "Netflix", Amount: core.WholeOf(15000), PaymentDay: core.WholeOf(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
}

func TestInsertExpenseRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"code":"42501","message":"new row violates row-level security policy"}`)
	})

	_, err := c.InsertExpense(context.Background(), session("at"), core.NewExpense{UserID: "u2", ServiceName: "X"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "42501", apiErr.Code)
}

func TestDeleteExpense(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Query().Get("id") == "eq.e1" {
			_, _ = io.WriteString(w, `[{"id":"e1"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	require.NoError(t, c.DeleteExpense(context.Background(), session("at"), "e1"))

	err := c.DeleteExpense(context.Background(), session("at"), "missing")
	assert.True(t, errors.Is(err, remote.ErrNotFound))
}

func TestGetUserWithoutIDIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"email":"kim@example.com"}`)
	})

	_, err := c.GetUser(context.Background(), session("at"))
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCallsHonourContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.ListExpenses(ctx, session("at"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"version":"v2","name":"GoTrue","description":"ok"}`)
	})
	require.NoError(t, c.Ping(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	var apiErr *APIError
	require.ErrorAs(t, down.Ping(context.Background()), &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestSplitErrorText(t *testing.T) {
	tests := []struct {
		text, code, message string
	}{
		{"(42501) new row violates policy", "42501", "new row violates policy"},
		{`response status code 400: {"error":"invalid_grant","error_description":"code expired"}`, "invalid_grant", "code expired"},
		{`response status code 422: {"error_code":"bad_json","msg":"bad body"}`, "bad_json", "bad body"},
		{"response status code 502: upstream down", "", "upstream down"},
		{"plain failure", "", "plain failure"},
	}
	for _, tt := range tests {
		code, message := splitErrorText(tt.text)
		assert.Equal(t, tt.code, code, tt.text)
		assert.Equal(t, tt.message, message, tt.text)
	}
}

func TestRowCallsRequireSession(t *testing.T) {
	c, err := New("https://proj.supabase.co", testKey)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.ListExpenses(ctx, remote.Session{})
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.ListAmounts(ctx, remote.Session{})
	assert.ErrorIs(t, err, remote.ErrNoSession)
	_, err = c.InsertExpense(ctx, remote.Session{}, core.NewExpense{})
	assert.ErrorIs(t, err, remote.ErrNoSession)
	assert.ErrorIs(t, c.DeleteExpense(ctx, remote.Session{}, "e1"), remote.ErrNoSession)
}
