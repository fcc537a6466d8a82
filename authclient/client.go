// Package authclient is a stateless request/response wrapper around the
// FitX Remote Auth Service. Every operation makes exactly one request and
// reports failures as *Error values classified by Reason.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/fitx/identity"
)

const (
	// DefaultBaseURL matches the development backend.
	DefaultBaseURL = "http://localhost:5000/api"

	maxResponseBody = 1 << 20
	defaultTimeout  = 30 * time.Second
)

// Grant is a successful credential exchange.
type Grant struct {
	Identity identity.Identity
	Token    string
}

// Client talks to a Remote Auth Service rooted at a base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the structured logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: "fitx-client/dev",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*Grant, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{
		Email:    identity.NormalizeEmail(email),
		Password: password,
	}, classifyCredential)
	if err != nil {
		return nil, err
	}
	return decodeGrant(env)
}

// Register creates an account. The service alone decides whether the
// requested role is granted; callers must compare the returned role.
func (c *Client) Register(ctx context.Context, p identity.Profile) (*Grant, error) {
	req := registerRequest{
		Email:     identity.NormalizeEmail(p.Email),
		Password:  p.Password,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      string(p.RequestedRole()),
		AdminCode: p.AdminCode,
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		req.Name = name
	}
	env, err := c.do(ctx, http.MethodPost, "/auth/register", "", req, classifyAuthenticated)
	if err != nil {
		return nil, err
	}
	return decodeGrant(env)
}

// FetchCurrentIdentity resolves the identity behind a bearer token. The
// returned Grant carries token unchanged.
func (c *Client) FetchCurrentIdentity(ctx context.Context, token string) (*Grant, error) {
	if token == "" {
		return nil, newError(ReasonUnauthorized, 0, "no token")
	}
	env, err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, classifyAuthenticated)
	if err != nil {
		return nil, err
	}

	// /auth/me returns either the user itself or {user: ...} as data.
	var wrapped authData
	if err := json.Unmarshal(env.Data, &wrapped); err == nil && wrapped.User != nil {
		id, err := wrapped.User.toIdentity()
		if err != nil {
			return nil, err
		}
		return &Grant{Identity: id, Token: token}, nil
	}
	var user wireUser
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, &Error{Reason: ReasonServerError, Message: "malformed identity", Err: err}
	}
	id, err := user.toIdentity()
	if err != nil {
		return nil, err
	}
	return &Grant{Identity: id, Token: token}, nil
}

// Revoke asks the service to invalidate token.
func (c *Client) Revoke(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, classifyAuthenticated)
	return err
}

// Call performs an authenticated request against path and decodes the
// envelope's data into out (which may be nil).
func (c *Client) Call(ctx context.Context, token, method, path string, in, out any) error {
	env, err := c.do(ctx, method, path, token, in, classifyResource)
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Reason: ReasonServerError, Message: "malformed response data", Err: err}
	}
	return nil
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", "", nil, classifyAuthenticated)
	return err
}

func decodeGrant(env *envelope) (*Grant, error) {
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Reason: ReasonServerError, Message: "malformed auth payload", Err: err}
	}
	if data.User == nil || data.Token == "" {
		return nil, newError(ReasonServerError, 0, "auth payload is missing user or token")
	}
	id, err := data.User.toIdentity()
	if err != nil {
		return nil, err
	}
	return &Grant{Identity: id, Token: data.Token}, nil
}

// classifier maps a non-2xx status to a Reason.
type classifier func(status int) Reason

// classifyCredential is used where a 400/401/404 means the credentials were wrong.
func classifyCredential(status int) Reason {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return ReasonInvalidCredentials
	case http.StatusConflict:
		return ReasonConflict
	default:
		return ReasonServerError
	}
}

func classifyAuthenticated(status int) Reason {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ReasonUnauthorized
	case http.StatusConflict:
		return ReasonConflict
	default:
		return ReasonServerError
	}
}

// classifyResource is used for application calls, where 403 means the
// identity lacks a permission rather than that the session is gone.
func classifyResource(status int) Reason {
	if status == http.StatusForbidden {
		return ReasonServerError
	}
	return classifyAuthenticated(status)
}

// do sends one request and returns the decoded success envelope.
func (c *Client) do(ctx context.Context, method, path, token string, in any, classify classifier) (*envelope, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, &Error{Reason: ReasonServerError, Message: "encoding request", Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, Message: "building request", Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("auth request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		msg := "request could not complete"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, &Error{Reason: ReasonNetwork, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("auth request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, StatusCode: resp.StatusCode, Message: "reading response", Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !ok {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if decodeErr == nil && env.text() != "" {
			msg = env.text()
		}
		return nil, newError(classify(resp.StatusCode), resp.StatusCode, "%s", msg)
	}
	if decodeErr != nil {
		return nil, &Error{Reason: ReasonServerError, StatusCode: resp.StatusCode, Message: "server returned malformed data", Err: decodeErr}
	}
	if env.Success == nil || !*env.Success {
		msg := env.text()
		if msg == "" {
			msg = "unexpected response"
		}
		return nil, newError(ReasonServerError, resp.StatusCode, "%s", msg)
	}
	return &env, nil
}
