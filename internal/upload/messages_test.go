package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turbo360/crewupload/internal/tus"
)

func TestDescribe(t *testing.T) {
	tcs := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "auth expired",
			err:      fmt.Errorf("send chunk: %w", tus.ErrAuthExpired),
			expected: "Session expired. Please log in again.",
		},
		{
			name:     "aborted",
			err:      tus.ErrAborted,
			expected: "",
		},
		{
			name:     "missing file",
			err:      &tus.FileSystemError{Path: "/media/A001.mov", Err: fs.ErrNotExist},
			expected: "File not found: /media/A001.mov",
		},
		{
			name:     "permission denied",
			err:      &tus.FileSystemError{Path: "/media/A001.mov", Err: fs.ErrPermission},
			expected: "Permission denied reading /media/A001.mov",
		},
		{
			name:     "timeout",
			err:      &tus.NetworkError{Op: "send chunk", Err: context.DeadlineExceeded},
			expected: "Upload timed out. Check your connection and try again.",
		},
		{
			name:     "connection refused",
			err:      &tus.NetworkError{Op: "send chunk", Err: syscall.ECONNREFUSED},
			expected: "Network unreachable. Check your connection and try again.",
		},
		{
			name:     "too large",
			err:      &tus.ProtocolError{Op: "create upload", StatusCode: http.StatusRequestEntityTooLarge},
			expected: "File is too large for the server.",
		},
		{
			name:     "overloaded",
			err:      &tus.ProtocolError{Op: "send chunk", StatusCode: http.StatusServiceUnavailable},
			expected: "Server is busy. Try again in a few minutes.",
		},
		{
			name:     "rate limited",
			err:      &tus.ProtocolError{Op: "send chunk", StatusCode: http.StatusTooManyRequests},
			expected: "Server is busy. Try again in a few minutes.",
		},
		{
			name:     "other status",
			err:      &tus.ProtocolError{Op: "send chunk", StatusCode: http.StatusTeapot},
			expected: "Upload failed: server responded with status 418",
		},
		{
			name:     "malformed response",
			err:      &tus.ProtocolError{Op: "send chunk", Body: "missing Upload-Offset header"},
			expected: "Upload failed: missing Upload-Offset header",
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			expected: "Upload failed: boom",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Describe(tc.err))
		})
	}
}
