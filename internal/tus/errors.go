package tus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthExpired is returned when the server rejects the bearer token.
	// It is terminal for the transfer and must never be retried.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAborted is returned when the caller cancelled the transfer (pause, remove, shutdown).
	// It is not a failure and carries no user-visible message.
	ErrAborted = errors.New("upload aborted")
)

// ProtocolError means the server answered, but with a status or shape the protocol does not allow
type ProtocolError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// NetworkError wraps transport failures: connection reset, DNS, timeouts
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FileSystemError means the source file could not be opened or read.
// Retrying cannot help, so it fails the transfer immediately.
type FileSystemError struct {
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err belongs to the retryable categories (protocol and network)
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAborted) {
		return false
	}

	var protoErr *ProtocolError
	var netErr *NetworkError
	return errors.As(err, &protoErr) || errors.As(err, &netErr)
}

// authPhrases are matched case-insensitively against error bodies
var authPhrases = []string{
	"token invalid",
	"invalid token",
	"token expired",
	"expired token",
	"token has expired",
	"jwt expired",
	"unauthorized",
	"unauthorised",
}

// isAuthFailure decides whether a non-success response means the credentials are no longer valid
func isAuthFailure(statusCode int, body string) bool {
	if statusCode == 401 || statusCode == 403 {
		return true
	}

	lower := strings.ToLower(body)
	for _, phrase := range authPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
