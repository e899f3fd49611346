package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/turbo360/crewupload/internal/tus"
)

// Transfer is the protocol surface the controller drives; *tus.Client implements it
type Transfer interface {
	CreateSession(ctx context.Context, size int64, metadata map[string]string) (string, error)
	QueryOffset(ctx context.Context, sessionURL string) (int64, error)
	SendChunk(ctx context.Context, req tus.ChunkRequest) (int64, error)
}

// Timer waits out retry delays; tests substitute one that records delays instead of sleeping
type Timer interface {
	After(d time.Duration) <-chan time.Time
}

// controller drives a single task from its current offset to completion
type controller struct {
	cfg      Config
	transfer Transfer
	timer    Timer
	now      func() time.Time
	emit     func(Event)
}

// run uploads task until the server holds every byte. It returns nil on completion,
// tus.ErrAborted when ctx is cancelled, and the last failure otherwise.
func (c *controller) run(ctx context.Context, task *Task) error {
	file := task.file

	f, err := os.Open(file.Path)
	if err != nil {
		return &tus.FileSystemError{Path: file.Path, Err: err}
	}
	defer f.Close() //nolint:errcheck // Read-only file

	info, err := f.Stat()
	if err != nil {
		return &tus.FileSystemError{Path: file.Path, Err: err}
	}
	if info.Size() != file.Size {
		return &tus.FileSystemError{
			Path: file.Path,
			Err:  fmt.Errorf("file size changed from %d to %d bytes", file.Size, info.Size()),
		}
	}

	sessionURL, offset := task.sessionAndOffset()
	needQuery := sessionURL != ""

	if sessionURL == "" {
		err := c.step(ctx, task, "create", func() error {
			created, err := c.transfer.CreateSession(ctx, file.Size, sessionMetadata(file))
			if err != nil {
				return err
			}
			sessionURL = created
			return nil
		})
		if err != nil {
			return abortedOr(ctx, err)
		}
		if err := task.setSession(sessionURL); err != nil {
			return err
		}
		slog.Info("Upload session created", "taskID", task.id, "file", file.Name, "sessionURL", sessionURL)
	}

	for {
		if ctx.Err() != nil {
			return tus.ErrAborted
		}

		err := c.step(ctx, task, "chunk", func() error {
			if needQuery {
				serverOffset, err := c.transfer.QueryOffset(ctx, sessionURL)
				if err != nil {
					return err
				}
				if err := task.confirm(serverOffset, c.now()); err != nil {
					return &tus.ProtocolError{Op: "query offset", Body: err.Error()}
				}
				if serverOffset != offset {
					slog.Info("Resuming from server offset", "taskID", task.id, "localOffset", offset, "serverOffset", serverOffset)
				}
				offset = serverOffset
				needQuery = false
				c.progress(task)
			}

			if offset >= file.Size {
				return nil
			}

			newOffset, err := c.sendChunk(ctx, task, f, sessionURL, offset)
			if err != nil {
				needQuery = true
				return err
			}
			if newOffset == offset {
				needQuery = true
				return &tus.ProtocolError{
					Op:   "send chunk",
					Body: fmt.Sprintf("server offset did not advance past %d", offset),
				}
			}
			if err := task.confirm(newOffset, c.now()); err != nil {
				needQuery = true
				return &tus.ProtocolError{Op: "send chunk", Body: err.Error()}
			}
			if newOffset < offset {
				slog.Warn("Server moved upload offset back", "taskID", task.id, "localOffset", offset, "serverOffset", newOffset)
			}
			task.resetRetries()

			offset = newOffset
			c.progress(task)
			return nil
		})
		if err != nil {
			return abortedOr(ctx, err)
		}

		if offset >= file.Size {
			return nil
		}
	}
}

// sendChunk sends one chunk and publishes in-flight progress until the request returns
func (c *controller) sendChunk(ctx context.Context, task *Task, f *os.File, sessionURL string, offset int64) (int64, error) {
	var mu sync.Mutex
	open := true

	newOffset, err := c.transfer.SendChunk(ctx, tus.ChunkRequest{
		SessionURL: sessionURL,
		Offset:     offset,
		Source:     f,
		Path:       task.file.Path,
		Size:       task.file.Size,
		MaxBytes:   c.cfg.ChunkSize,
		OnProgress: func(sent int64) {
			mu.Lock()
			defer mu.Unlock()
			if open && task.transferred(sent, c.now()) {
				c.progress(task)
			}
		},
	})

	mu.Lock()
	open = false
	mu.Unlock()

	return newOffset, err
}

// step runs op under the retry budget. The budget is per call, so it starts fresh for every chunk.
func (c *controller) step(ctx context.Context, task *Task, what string, op func() error) error {
	failures := 0

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries + 1)),
		retry.LastErrorOnly(true),
		retry.RetryIf(tus.IsRetryable),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return c.delay(failures)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Upload attempt failed",
				"taskID", task.id,
				"step", what,
				"attempt", n+1,
				"error", err,
			)
		}),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	return retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(tus.ErrAborted)
			}
			if failures > 0 {
				task.noteRetry()
			}

			err := op()
			if err != nil {
				failures++
			}
			return err
		},
		opts...,
	)
}

// delay returns the wait before the retry following the given number of failures
func (c *controller) delay(failures int) time.Duration {
	delays := c.cfg.RetryDelays
	idx := min(max(failures-1, 0), len(delays)-1)
	return delays[idx]
}

func (c *controller) progress(task *Task) {
	now := c.now()
	c.emit(Event{Type: EventProgress, TaskID: task.id, Task: task.Snapshot(now), At: now})
}

// sessionMetadata is the metadata sent on session creation
func sessionMetadata(file File) map[string]string {
	metadata := make(map[string]string, len(file.Metadata)+2)
	for k, v := range file.Metadata {
		metadata[k] = v
	}
	metadata["filename"] = file.Name
	if file.ContentType != "" {
		metadata["filetype"] = file.ContentType
	}
	return metadata
}

func abortedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return tus.ErrAborted
	}
	return err
}
