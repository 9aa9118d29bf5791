// Package api is the gateway to the Dconnect REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/session"
)

// DefaultTimeout bounds every outbound call unless overridden.
const DefaultTimeout = 8 * time.Second

// Client is a thin HTTP client for the Dconnect REST API. It attaches the
// session's bearer credential to every request and invalidates the session
// when the server answers 401. Calls are never retried: a timeout fails
// exactly like a network error.
type Client struct {
	baseURL    string
	session    *session.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new API client. The baseURL is the root URL of the
// backend (e.g., https://api.dconnect.app).
func NewClient(baseURL string, sess *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorResponse is the error body the backend sends. Validation failures
// may carry a list of messages instead of a single string.
type errorResponse struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func (e errorResponse) text() string {
	if len(e.Message) == 0 {
		return e.Error
	}
	var single string
	if json.Unmarshal(e.Message, &single) == nil {
		return single
	}
	var many []string
	if json.Unmarshal(e.Message, &many) == nil {
		return strings.Join(many, "; ")
	}
	return e.Error
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) patch(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// do builds the request, attaches the credential, maps failures onto the
// apperr taxonomy, and decodes JSON responses.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshaling request body")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}

	token, generation := c.session.Credential()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return &apperr.NetworkOrTimeoutError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.NetworkOrTimeoutError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("elapsed", time.Since(started)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if token != "" {
			c.session.InvalidateIfCurrent(generation, session.ReasonAuthRejected)
		}
		return &apperr.AuthError{Method: method, Path: path}

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &apperr.NotFoundOrStaleError{Entity: entityOf(path), ID: idOf(path)}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		return &apperr.ServerError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    apiErr.text(),
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return errors.Wrapf(err, "unmarshaling response from %s %s", method, path)
	}

	return nil
}

// entityOf returns the first path segment, e.g. "matches" for
// /matches/12/status.
func entityOf(path string) string {
	path = strings.SplitN(path, "?", 2)[0]
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return parts[0]
}

// idOf returns the first segment after the entity that looks like an
// identifier rather than a sub-resource name.
func idOf(path string) string {
	path = strings.SplitN(path, "?", 2)[0]
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts[1:] {
		if strings.Trim(part, "abcdefghijklmnopqrstuvwxyz-") != "" {
			return part
		}
	}
	return ""
}
