package api

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

	"github.com/avast/retry-go/v4"
	"github.com/go-playground/validator/v10"
)

// ErrUnauthorized is returned when the server rejects the stored token
var ErrUnauthorized = errors.New("you must log in to use this functionality. Please run 'crewupload login'")

// TokenProvider supplies the bearer token and is told when the server rejects it
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StatusError is a non-2xx response from the upload API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// client is the upload service API client
type client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	validate   *validator.Validate
	userAgent  string
}

var _ Client = (*client)(nil)

// Option configures the API client
type Option func(*client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

// NewClient creates a new API client for the service at baseURL
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) (Client, error) {
	if baseURL == "" {
		return nil, errors.New("API base URL is required")
	}

	c := &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request makes an HTTP request to the upload API with retry logic
func (c *client) request(ctx context.Context, method, path string, body any, requiresAuth bool) ([]byte, error) {
	var respBody []byte
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++

			reqURL := c.baseURL + path

			slog.Debug("API request",
				"method", method,
				"path", path,
				"requiresAuth", requiresAuth,
				"attempt", attempt,
			)

			var bodyReader io.Reader
			if body != nil {
				jsonBody, err := json.Marshal(body)
				if err != nil {
					return retry.Unrecoverable(fmt.Errorf("failed to marshal request body: %w", err))
				}
				bodyReader = bytes.NewReader(jsonBody)
			}

			req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}

			req.Header.Set("Content-Type", "application/json")
			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			if requiresAuth {
				if c.tokens == nil {
					return retry.Unrecoverable(ErrUnauthorized)
				}
				token, err := c.tokens.Token(ctx)
				if err != nil {
					return retry.Unrecoverable(err)
				}
				req.Header.Set("Authorization", "Bearer "+token)
			}

			startTime := time.Now()
			resp, err := c.httpClient.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				slog.Warn("HTTP request failed",
					"error", err,
					"method", method,
					"path", path,
					"duration", duration,
					"attempt", attempt,
				)
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close() //nolint:errcheck // Deferred close, error not actionable

			respBody, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			slog.Debug("API response",
				"statusCode", resp.StatusCode,
				"responseSize", len(respBody),
				"duration", duration,
				"method", method,
				"path", path,
			)

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}

			if requiresAuth && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				slog.Warn("Authentication failed", "statusCode", resp.StatusCode, "path", path)
				c.tokens.Invalidate()
				return retry.Unrecoverable(ErrUnauthorized)
			}

			statusErr := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
			slog.Error("API error",
				"statusCode", resp.StatusCode,
				"message", statusErr.Message,
				"path", path,
				"method", method,
			)
			if resp.StatusCode >= http.StatusInternalServerError {
				return statusErr
			}
			return retry.Unrecoverable(statusErr)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// errorMessage extracts {"error": "..."} from a failed response
func errorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) < 200 {
		return msg
	}
	return "Request failed"
}

// Login exchanges the shared crew password for a bearer token
func (c *client) Login(ctx context.Context, password string) (string, error) {
	payload := LoginRequest{Password: password}
	if err := c.validate.Struct(payload); err != nil {
		return "", errors.New("password is required")
	}

	body, err := c.request(ctx, http.MethodPost, "/api/auth/login", payload, false)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			return "", errors.New("invalid password")
		}
		return "", err
	}

	var resp LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("login response did not include a token")
	}
	return resp.Token, nil
}

// Logout revokes the current token on the server
func (c *client) Logout(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, true)
	return err
}

// CreateSession opens a crew upload session
func (c *client) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid session details: %w", err)
	}

	body, err := c.request(ctx, http.MethodPost, "/api/session", req, true)
	if err != nil {
		return nil, err
	}

	var resp CreateSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	if resp.SessionID == "" {
		return nil, errors.New("session response did not include a session id")
	}
	return &resp, nil
}
