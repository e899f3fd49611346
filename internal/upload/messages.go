package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"

	"github.com/turbo360/crewupload/internal/tus"
)

// Describe turns an upload failure into a message fit for the task list
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, tus.ErrAuthExpired) {
		return "Session expired. Please log in again."
	}
	if errors.Is(err, tus.ErrAborted) {
		return ""
	}

	var fsErr *tus.FileSystemError
	if errors.As(err, &fsErr) {
		switch {
		case errors.Is(fsErr.Err, fs.ErrNotExist):
			return fmt.Sprintf("File not found: %s", fsErr.Path)
		case errors.Is(fsErr.Err, fs.ErrPermission):
			return fmt.Sprintf("Permission denied reading %s", fsErr.Path)
		default:
			return fmt.Sprintf("Could not read %s: %v", fsErr.Path, fsErr.Err)
		}
	}

	var netErr *tus.NetworkError
	if errors.As(err, &netErr) {
		if isTimeout(netErr.Err) {
			return "Upload timed out. Check your connection and try again."
		}
		return "Network unreachable. Check your connection and try again."
	}

	var protoErr *tus.ProtocolError
	if errors.As(err, &protoErr) {
		switch protoErr.StatusCode {
		case http.StatusRequestEntityTooLarge:
			return "File is too large for the server."
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return "Server is busy. Try again in a few minutes."
		case http.StatusNotFound:
			return "Upload session no longer exists on the server. Retry to start over."
		case 0:
			return fmt.Sprintf("Upload failed: %s", protoErr.Body)
		default:
			return fmt.Sprintf("Upload failed: server responded with status %d", protoErr.StatusCode)
		}
	}

	return fmt.Sprintf("Upload failed: %v", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
