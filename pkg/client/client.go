// Package client is a Go client for the movie comments API.
//
// The client keeps the caller's session (access token, refresh token, user
// id). When an authenticated call is rejected with 401, concurrent callers
// share a single refresh request and each retries its own call once with the
// new token. If the refresh fails the session is cleared and every waiter
// receives the refresh error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// ErrNoSession is returned by authenticated calls made before Login.
var ErrNoSession = errors.New("client: no session")

// Session holds the credentials returned by login and refresh.
type Session struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Token        string    `json:"token"`
	Expiration   time.Time `json:"expiration"`
	RefreshToken string    `json:"refreshToken"`
}

// Comment mirrors the API's comment representation.
type Comment struct {
	ID        int64     `json:"id"`
	MovieID   int       `json:"movieId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu      sync.RWMutex
	session *Session

	refreshes singleflight.Group
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SetSession installs a previously saved session.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	copied := *s
	c.session = &copied
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.call(ctx, http.MethodPost, "/api/auth/register", "", body, nil)
}

// Login authenticates and stores the returned session.
func (c *Client) Login(ctx context.Context, identifier, password string) (*Session, error) {
	var s Session
	body := map[string]string{"loginIdentifier": identifier, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", "", body, &s); err != nil {
		return nil, err
	}
	c.SetSession(&s)
	return c.Session(), nil
}

// Logout revokes the refresh token and forgets the session.
func (c *Client) Logout(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return nil
	}
	c.SetSession(nil)
	return c.call(ctx, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": s.RefreshToken}, nil)
}

// Refresh exchanges the current refresh token for a new session. Concurrent
// calls share one request.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s := c.Session()
	if s == nil {
		return nil, ErrNoSession
	}
	if err := c.refresh(ctx, s.Token); err != nil {
		return nil, err
	}
	return c.Session(), nil
}

// ListComments returns a movie's comments, newest first.
func (c *Client) ListComments(ctx context.Context, movieID int) ([]Comment, error) {
	var out []Comment
	if err := c.call(ctx, http.MethodGet, commentsPath(movieID), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment posts a comment as the session user.
func (c *Client) AddComment(ctx context.Context, movieID int, text string) (*Comment, error) {
	var out Comment
	if err := c.authed(ctx, http.MethodPost, commentsPath(movieID), map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment replaces the text of one of the session user's comments.
func (c *Client) UpdateComment(ctx context.Context, movieID int, commentID int64, text string) error {
	return c.authed(ctx, http.MethodPut, commentPath(movieID, commentID), map[string]string{"text": text}, nil)
}

// DeleteComment removes one of the session user's comments.
func (c *Client) DeleteComment(ctx context.Context, movieID int, commentID int64) error {
	return c.authed(ctx, http.MethodDelete, commentPath(movieID, commentID), nil, nil)
}

// authed performs a bearer-authenticated call, refreshing and retrying once on 401.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}

	err := c.call(ctx, method, path, s.Token, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	if err := c.refresh(ctx, s.Token); err != nil {
		return err
	}
	retry := c.Session()
	if retry == nil {
		return ErrNoSession
	}
	return c.call(ctx, method, path, retry.Token, body, out)
}

// refresh replaces the session whose access token is rejected. Callers that
// observed the same rejected token share one request; a caller whose token was
// already replaced returns immediately.
func (c *Client) refresh(ctx context.Context, rejected string) error {
	ch := c.refreshes.DoChan(rejected, func() (any, error) {
		current := c.Session()
		if current == nil {
			return nil, ErrNoSession
		}
		if current.Token != rejected {
			return nil, nil
		}

		var next Session
		body := map[string]string{"userId": current.UserID, "refreshToken": current.RefreshToken}
		// The shared request outlives the context of the caller that started it.
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		if err := c.call(reqCtx, http.MethodPost, "/api/auth/refresh", "", body, &next); err != nil {
			c.logger.Warn("token refresh failed", zap.String("user_id", current.UserID), zap.Error(err))
			c.clearSession(rejected)
			return nil, err
		}
		c.SetSession(&next)
		c.logger.Debug("token refreshed", zap.String("user_id", next.UserID))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) refreshTimeout() time.Duration {
	if c.http.Timeout > 0 {
		return c.http.Timeout
	}
	return defaultTimeout
}

func (c *Client) clearSession(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Token == rejected {
		c.session = nil
	}
}

func (c *Client) call(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	}
	return apiErr
}

func commentsPath(movieID int) string {
	return fmt.Sprintf("/api/movies/%d/comments", movieID)
}

func commentPath(movieID int, commentID int64) string {
	return fmt.Sprintf("/api/movies/%d/comments/%d", movieID, commentID)
}
