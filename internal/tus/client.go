package tus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// ProtocolVersion is sent as Tus-Resumable on every request
	ProtocolVersion = "1.0.0"

	// DefaultRequestTimeout bounds each request; sized for 50MB+ chunks over slow links
	DefaultRequestTimeout = 10 * time.Minute

	offsetContentType = "application/offset+octet-stream"

	// maxErrorBody caps how much of an error response is kept for messages
	maxErrorBody = 64 * 1024
)

// TokenSource supplies the current bearer token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPClient interface for dependency injection (allows mocking)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client
type Config struct {
	Endpoint       string
	Tokens         TokenSource
	HTTPClient     HTTPClient    // Default: http.Client without a global timeout
	RequestTimeout time.Duration // Default: DefaultRequestTimeout
	UserAgent      string
}

// Client speaks the resumable upload protocol against one server
type Client struct {
	endpoint       *url.URL
	tokens         TokenSource
	httpClient     HTTPClient
	requestTimeout time.Duration
	userAgent      string
}

// ChunkRequest describes one PATCH of a byte range
type ChunkRequest struct {
	SessionURL string
	Offset     int64
	Source     io.ReaderAt
	Path       string // used in error messages only
	Size       int64  // declared size of the whole file
	MaxBytes   int64

	// OnProgress receives the cumulative bytes written for this chunk so far
	OnProgress func(sent int64)
}

// NewClient creates a new protocol client for cfg.Endpoint
func NewClient(cfg Config) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid upload endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid upload endpoint %q: scheme and host are required", cfg.Endpoint)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token source is required")
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crewupload"
	}

	return &Client{
		endpoint:       endpoint,
		tokens:         cfg.Tokens,
		httpClient:     cfg.HTTPClient,
		requestTimeout: cfg.RequestTimeout,
		userAgent:      cfg.UserAgent,
	}, nil
}

// CreateSession creates a new resumable upload of size bytes and returns its absolute URL
func (c *Client) CreateSession(ctx context.Context, size int64, metadata map[string]string) (string, error) {
	const op = "create upload"

	encoded, err := EncodeMetadata(metadata)
	if err != nil {
		return "", &ProtocolError{Op: op, Body: err.Error()}
	}

	resp, body, err := c.send(ctx, op, http.MethodPost, c.endpoint.String(), nil, func(req *http.Request) {
		req.Header.Set("Upload-Length", strconv.FormatInt(size, 10))
		req.Header.Set("Content-Type", offsetContentType)
		if encoded != "" {
			req.Header.Set("Upload-Metadata", encoded)
		}
	})
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusCreated {
		return "", c.classify(op, resp.StatusCode, body)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: "missing Location header"}
	}

	sessionURL, err := c.resolveLocation(location)
	if err != nil {
		return "", &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: err.Error()}
	}

	slog.Debug("Upload session created", "sessionURL", sessionURL, "size", size)
	return sessionURL, nil
}

// QueryOffset asks the server how many bytes of the session it has durably accepted
func (c *Client) QueryOffset(ctx context.Context, sessionURL string) (int64, error) {
	const op = "query offset"

	resp, body, err := c.send(ctx, op, http.MethodHead, sessionURL, nil, nil)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return 0, c.classify(op, resp.StatusCode, body)
	}

	header := resp.Header.Get("Upload-Offset")
	if header == "" {
		return 0, nil
	}

	offset, err := parseOffset(header)
	if err != nil {
		return 0, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: err.Error()}
	}

	slog.Debug("Upload offset queried", "sessionURL", sessionURL, "offset", offset)
	return offset, nil
}

// SendChunk streams at most req.MaxBytes of req.Source starting at req.Offset and
// returns the offset reported by the server
func (c *Client) SendChunk(ctx context.Context, req ChunkRequest) (int64, error) {
	const op = "send chunk"

	if req.Offset < 0 || req.Offset > req.Size {
		return 0, fmt.Errorf("%s: offset %d outside of [0, %d]", op, req.Offset, req.Size)
	}

	length := req.Size - req.Offset
	if req.MaxBytes > 0 && req.MaxBytes < length {
		length = req.MaxBytes
	}

	source := &sourceReader{
		r:          io.NewSectionReader(req.Source, req.Offset, length),
		onProgress: req.OnProgress,
	}

	var reqBody io.Reader = source
	if length == 0 {
		reqBody = http.NoBody
	}

	resp, body, err := c.send(ctx, op, http.MethodPatch, req.SessionURL, reqBody, func(httpReq *http.Request) {
		httpReq.ContentLength = length
		httpReq.Header.Set("Upload-Offset", strconv.FormatInt(req.Offset, 10))
		httpReq.Header.Set("Content-Type", offsetContentType)
	})
	if err != nil {
		if readErr := source.readErr(); readErr != nil && !errors.Is(err, ErrAborted) {
			return 0, &FileSystemError{Path: req.Path, Err: readErr}
		}
		return 0, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return 0, c.classify(op, resp.StatusCode, body)
	}

	header := resp.Header.Get("Upload-Offset")
	if header == "" {
		return 0, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: "missing Upload-Offset header"}
	}

	newOffset, err := parseOffset(header)
	if err != nil {
		return 0, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if newOffset > req.Size {
		return 0, &ProtocolError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("server offset %d exceeds upload length %d", newOffset, req.Size),
		}
	}

	if expected := req.Offset + length; newOffset != expected {
		slog.Warn("Server offset differs from bytes sent",
			"sessionURL", req.SessionURL,
			"expected", expected,
			"serverOffset", newOffset,
		)
	}

	return newOffset, nil
}

// send builds, authenticates and executes one request under the per-request timeout.
// The response body is read (capped) and closed before returning.
func (c *Client) send(
	ctx context.Context,
	op, method, target string,
	body io.Reader,
	prepare func(req *http.Request),
) (*http.Response, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrAuthExpired, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, nil, &ProtocolError{Op: op, Body: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Tus-Resumable", ProtocolVersion)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if prepare != nil {
		prepare(req)
	}

	slog.Debug("Upload request", "op", op, "method", method, "url", target)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Upload request aborted", "op", op, "url", target, "duration", duration)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrAborted)
		}
		slog.Warn("Upload request failed", "op", op, "url", target, "error", err, "duration", duration)
		return nil, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Deferred close, error not actionable

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrAborted)
		}
		return nil, nil, &NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	slog.Debug("Upload response",
		"op", op,
		"statusCode", resp.StatusCode,
		"responseSize", len(respBody),
		"duration", duration,
	)

	return resp, respBody, nil
}

// classify maps a non-success status to AuthExpired or ProtocolError
func (c *Client) classify(op string, statusCode int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if isAuthFailure(statusCode, text) {
		slog.Warn("Upload authentication failed", "op", op, "statusCode", statusCode)
		return fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}
	return &ProtocolError{Op: op, StatusCode: statusCode, Body: text}
}

// resolveLocation turns a Location header into an absolute URL.
// Relative locations are resolved against the endpoint's scheme and host.
func (c *Client) resolveLocation(location string) (string, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location header %q: %w", location, err)
	}
	if loc.IsAbs() {
		return loc.String(), nil
	}

	if loc.Host == "" && !strings.HasPrefix(loc.Path, "/") {
		loc.Path = "/" + loc.Path
	}

	base := &url.URL{Scheme: c.endpoint.Scheme, Host: c.endpoint.Host}
	return base.ResolveReference(loc).String(), nil
}

func parseOffset(header string) (int64, error) {
	offset, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid Upload-Offset header %q", header)
	}
	return offset, nil
}

// sourceReader streams a file section and remembers read failures so they can be
// reported as file system errors instead of network errors
type sourceReader struct {
	r          io.Reader
	onProgress func(sent int64)
	sent       int64

	mu  sync.Mutex
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.sent += int64(n)
		if s.onProgress != nil {
			s.onProgress(s.sent)
		}
	}
	if err != nil && err != io.EOF {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
	return n, err
}

func (s *sourceReader) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
