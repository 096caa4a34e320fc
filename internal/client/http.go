package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// ErrMalformedResponse is returned when a 2xx body cannot be used.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// HTTPClient makes REST calls to the session backend. The session itself is
// identified by a cookie kept in the client's jar, so one HTTPClient maps to
// one quiz session.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient returns a session API client for baseURL. Cookies set by
// the backend are kept in a jar shared with the status feed.
// A zero timeout falls back to 10s.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout, Jar: jar},
	}
}

// Jar exposes the cookie jar so the WebSocket feed joins the same session.
func (c *HTTPClient) Jar() http.CookieJar {
	return c.client.Jar
}

// BaseURL returns the backend base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Status fetches GET /api/session/status.
func (c *HTTPClient) Status(ctx context.Context) (*SessionStatus, error) {
	var s SessionStatus
	if err := c.do(ctx, http.MethodGet, "/api/session/status", nil, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Extend sends POST /api/session/extend.
func (c *HTTPClient) Extend(ctx context.Context) (*ExtendResult, error) {
	var out ExtendResult
	if err := c.do(ctx, http.MethodPost, "/api/session/extend", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save sends POST /api/session/save. A response without a backup id is
// malformed.
func (c *HTTPClient) Save(ctx context.Context) (*SaveResult, error) {
	var out SaveResult
	if err := c.do(ctx, http.MethodPost, "/api/session/save", nil, &out); err != nil {
		return nil, err
	}
	if out.BackupID == "" {
		return nil, fmt.Errorf("%w: missing backup_id", ErrMalformedResponse)
	}
	return &out, nil
}

// Restore sends POST /api/session/restore for the given backup.
func (c *HTTPClient) Restore(ctx context.Context, backupID string) (*RestoreResult, error) {
	var out RestoreResult
	if err := c.do(ctx, http.MethodPost, "/api/session/restore", RestoreRequest{BackupID: backupID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Start sends POST /api/session/start, replacing the current session.
func (c *HTTPClient) Start(ctx context.Context) (*StartResult, error) {
	var out StartResult
	if err := c.do(ctx, http.MethodPost, "/api/session/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
