// Package supabase talks to a hosted Supabase project: GoTrue for auth and
// PostgREST for the expense rows.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"

	"fixedspend/internal/remote"
)

const (
	defaultTable = "expenses"
	authPath     = "/auth/v1"
	restPath     = "/rest/v1"
	// callTimeout caps one remote call when the caller sets no deadline.
	callTimeout = 30 * time.Second
)

// Client implements remote.Auth and remote.ExpenseStore on the GoTrue and
// PostgREST client libraries.
type Client struct {
	baseURL   *url.URL
	anonKey   string
	table     string
	transport http.RoundTripper
	auth      gotrue.Client
	now       func() time.Time
}

// Ensure interface conformance
var (
	_ remote.Auth         = (*Client)(nil)
	_ remote.ExpenseStore = (*Client)(nil)
	_ remote.Pinger       = (*Client)(nil)
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient routes every call through the transport of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil && hc.Transport != nil {
			c.transport = hc.Transport
		}
	}
}

// WithTable sets the expenses table name.
func WithTable(table string) Option {
	return func(c *Client) {
		if t := strings.TrimSpace(table); t != "" {
			c.table = t
		}
	}
}

// WithClock overrides time.Now for token expiry computation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the project at baseURL using the public anon key.
func New(baseURL, anonKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase url must be absolute: %q", baseURL)
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, errors.New("missing supabase anon key")
	}
	c := &Client{
		baseURL:   u,
		anonKey:   anonKey,
		table:     defaultTable,
		transport: newPooledTransport(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.auth = gotrue.New("", anonKey).WithCustomGoTrueURL(c.endpoint(authPath))
	return c, nil
}

// newPooledTransport creates a transport with connection pooling and
// conservative timeouts. Calls are not retried.
func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	return u.String()
}

// call binds one library request to the caller's context and remembers the
// HTTP status, which the libraries only report inside their error text.
type call struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
}

// newCall scopes one remote call. Calls without a deadline get callTimeout.
func (c *Client) newCall(ctx context.Context) (*call, context.CancelFunc) {
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
	}
	return &call{ctx: ctx, base: c.transport}, cancel
}

func (k *call) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := k.base.RoundTrip(req.WithContext(k.ctx))
	if err != nil {
		return nil, err
	}
	k.status = resp.StatusCode
	return resp, nil
}

// authFor returns an auth client scoped to one call, bearing token when set.
func (c *Client) authFor(k *call, token string) gotrue.Client {
	g := c.auth.WithClient(http.Client{Transport: k})
	if token != "" {
		g = g.WithToken(token)
	}
	return g
}

// restFor returns a PostgREST client scoped to one call. PostgREST clients hold
// their headers in shared state, so one is built per call.
func (c *Client) restFor(k *call, sess remote.Session) (*postgrest.Client, error) {
	pg := postgrest.NewClient(c.endpoint(restPath), "", map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + sess.AccessToken(),
	})
	if pg.ClientError != nil {
		return nil, fmt.Errorf("postgrest client: %w", pg.ClientError)
	}
	pg.Transport.Parent = k
	return pg, nil
}

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// Is maps auth failures to remote.ErrNoSession and 404 to remote.ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case remote.ErrNoSession:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case remote.ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// fail turns a library error into an APIError when the server answered with
// an error status. Transport failures are returned as they are.
func (k *call) fail(op string, err error) error {
	if k.status < 400 {
		return fmt.Errorf("%s: %w", op, err)
	}
	code, message := splitErrorText(err.Error())
	return fmt.Errorf("%s: %w", op, &APIError{Status: k.status, Code: code, Message: message})
}

// splitErrorText extracts the code from the library error formats
// "(code) message" and "response status code N: body".
func splitErrorText(text string) (code, message string) {
	if strings.HasPrefix(text, "(") {
		if end := strings.Index(text, ") "); end > 0 {
			return text[1:end], text[end+2:]
		}
	}
	const prefix = "response status code "
	if rest, ok := strings.CutPrefix(text, prefix); ok {
		if status, body, found := strings.Cut(rest, ": "); found {
			if _, err := strconv.Atoi(status); err == nil {
				code, message := gotrueError(body)
				if message == "" {
					message = body
				}
				return code, message
			}
		}
	}
	return "", text
}

// Ping checks the auth service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	k, cancel := c.newCall(ctx)
	defer cancel()
	if _, err := c.authFor(k, "").HealthCheck(); err != nil {
		return k.fail("health check", err)
	}
	return nil
}
