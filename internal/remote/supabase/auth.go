package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"golang.org/x/oauth2"

	"fixedspend/internal/remote"
)

func toSession(s types.Session, now time.Time) remote.Session {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		tok.Expiry = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return remote.Session{Token: tok, User: toUser(s.User)}
}

func toUser(u types.User) remote.User {
	if u.ID == uuid.Nil {
		return remote.User{Email: u.Email}
	}
	return remote.User{ID: u.ID.String(), Email: u.Email}
}

// gotrueError reads the code and description out of a GoTrue error body.
// Empty results mean the body was not a GoTrue error document.
func gotrueError(body string) (code, message string) {
	var e struct {
		ErrorCode   string `json:"error_code"`
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return "", ""
	}
	code = e.ErrorCode
	if code == "" {
		code = e.Error
	}
	for _, m := range []string{e.Description, e.Msg, e.Message} {
		if m != "" {
			return code, m
		}
	}
	return code, ""
}

// AuthorizeURL builds the GoTrue authorize URL for a PKCE sign-in. The
// browser follows it, so it is built here rather than fetched.
func (c *Client) AuthorizeURL(provider, redirectTo, challenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if challenge != "" {
		q.Set("code_challenge", challenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.endpoint(authPath+"/authorize") + "?" + q.Encode()
}

// ExchangeCode trades the authorization code and verifier for a session.
// GoTrue expects the code under auth_code for this grant.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (remote.Session, error) {
	k, cancel := c.newCall(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return remote.Session{}, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint(authPath+"/token")+"?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return remote.Session{}, fmt.Errorf("exchange code: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := (&http.Client{Transport: k}).Do(req)
	if err != nil {
		return remote.Session{}, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return remote.Session{}, fmt.Errorf("exchange code: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remote.Session{}, k.fail("exchange code", fmt.Errorf("response status code %d: %s", resp.StatusCode, raw))
	}

	var out types.TokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return remote.Session{}, fmt.Errorf("exchange code: decode: %w", err)
	}
	if out.AccessToken == "" {
		return remote.Session{}, fmt.Errorf("exchange code: %w", remote.ErrNoSession)
	}
	return toSession(out.Session, c.now()), nil
}

// Refresh obtains a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (remote.Session, error) {
	if refreshToken == "" {
		return remote.Session{}, remote.ErrNoSession
	}
	k, cancel := c.newCall(ctx)
	defer cancel()

	out, err := c.authFor(k, "").RefreshToken(refreshToken)
	if err != nil {
		return remote.Session{}, k.fail("refresh token", err)
	}
	if out.AccessToken == "" {
		return remote.Session{}, fmt.Errorf("refresh token: %w", remote.ErrNoSession)
	}
	return toSession(out.Session, c.now()), nil
}

// GetUser returns the account behind the session's access token.
func (c *Client) GetUser(ctx context.Context, sess remote.Session) (remote.User, error) {
	if !sess.Present() {
		return remote.User{}, remote.ErrNoSession
	}
	k, cancel := c.newCall(ctx)
	defer cancel()

	out, err := c.authFor(k, sess.AccessToken()).GetUser()
	if err != nil {
		return remote.User{}, k.fail("get user", err)
	}
	if out.ID == uuid.Nil {
		return remote.User{}, fmt.Errorf("get user: %w", remote.ErrNotFound)
	}
	return toUser(out.User), nil
}

// SignOut revokes the session on the auth service.
func (c *Client) SignOut(ctx context.Context, sess remote.Session) error {
	if !sess.Present() {
		return nil
	}
	k, cancel := c.newCall(ctx)
	defer cancel()

	if err := c.authFor(k, sess.AccessToken()).Logout(); err != nil {
		return k.fail("sign out", err)
	}
	return nil
}
