package upload

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"time"
)

// Status is the lifecycle state of a Task
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ErrInvalidTransition is returned when an operation does not apply to the task's current status
var ErrInvalidTransition = errors.New("invalid task transition")

// File describes one local file to upload
type File struct {
	Path        string
	Size        int64
	ContentType string

	// Name is shown to users and sent as the filename; defaults to the base name of Path
	Name string

	Metadata map[string]string
}

// Task is one file's upload. Transitions are serialized by the task mutex and
// only the task's worker mutates a task while it is uploading.
type Task struct {
	id   string
	file File

	mu          sync.Mutex
	status      Status
	offset      int64
	inFlight    int64
	sessionURL  string
	errMessage  string
	retryCount  int
	startedAt   time.Time
	completedAt time.Time
	speed       speedMeter
}

// Snapshot is an immutable copy of a task's state
type Snapshot struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Status      Status

	// Offset is the byte count confirmed by the server
	Offset int64

	// Uploaded additionally counts bytes of the chunk in flight
	Uploaded int64

	SessionURL   string
	Error        string
	RetryCount   int
	Speed        float64
	AverageSpeed float64
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Progress is the confirmed fraction in [0, 1]; 0 for an empty file that has not completed
func (s Snapshot) Progress() float64 {
	if s.Size == 0 {
		if s.Status == StatusCompleted {
			return 1
		}
		return 0
	}
	return float64(s.Uploaded) / float64(s.Size)
}

func newTask(id string, file File, sampleInterval time.Duration) *Task {
	if file.Name == "" {
		file.Name = filepath.Base(file.Path)
	}
	file.Metadata = maps.Clone(file.Metadata)

	return &Task{
		id:     id,
		file:   file,
		status: StatusPending,
		speed:  newSpeedMeter(sampleInterval),
	}
}

// ID returns the task id
func (t *Task) ID() string {
	return t.id
}

// File returns the file the task uploads
func (t *Task) File() File {
	f := t.file
	f.Metadata = maps.Clone(t.file.Metadata)
	return f
}

// Status returns the current status
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Snapshot copies the task state as of now
func (t *Task) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	uploaded := t.offset + t.inFlight
	speed := 0.0
	if t.status == StatusUploading {
		speed = t.speed.current()
	}

	return Snapshot{
		ID:           t.id,
		Path:         t.file.Path,
		Name:         t.file.Name,
		ContentType:  t.file.ContentType,
		Size:         t.file.Size,
		Status:       t.status,
		Offset:       t.offset,
		Uploaded:     uploaded,
		SessionURL:   t.sessionURL,
		Error:        t.errMessage,
		RetryCount:   t.retryCount,
		Speed:        speed,
		AverageSpeed: averageSpeed(uploaded, t.startedAt, now),
		StartedAt:    t.startedAt,
		CompletedAt:  t.completedAt,
	}
}

func (t *Task) sessionAndOffset() (string, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionURL, t.offset
}

func (t *Task) transition(from []Status, to Status) error {
	for _, s := range from {
		if t.status == s {
			t.status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
}

// start moves a pending or paused task to uploading
func (t *Task) start(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition([]Status{StatusPending, StatusPaused}, StatusUploading); err != nil {
		return err
	}
	if t.startedAt.IsZero() {
		t.startedAt = now
	}
	t.inFlight = 0
	t.speed.reset(now, t.offset)
	return nil
}

// pause keeps the confirmed offset and drops the bytes in flight
func (t *Task) pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition([]Status{StatusUploading}, StatusPaused); err != nil {
		return err
	}
	t.inFlight = 0
	return nil
}

func (t *Task) complete(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusUploading && t.offset != t.file.Size {
		return fmt.Errorf("%w: completed at offset %d of %d", ErrInvalidTransition, t.offset, t.file.Size)
	}
	if err := t.transition([]Status{StatusUploading}, StatusCompleted); err != nil {
		return err
	}
	t.inFlight = 0
	t.completedAt = now
	return nil
}

func (t *Task) fail(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition([]Status{StatusUploading}, StatusError); err != nil {
		return err
	}
	t.inFlight = 0
	t.errMessage = message
	return nil
}

// retry returns a failed task to pending with a clean slate; the next run creates a new session
func (t *Task) retry() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition([]Status{StatusError}, StatusPending); err != nil {
		return err
	}
	t.offset = 0
	t.inFlight = 0
	t.sessionURL = ""
	t.errMessage = ""
	t.retryCount = 0
	t.startedAt = time.Time{}
	t.completedAt = time.Time{}
	return nil
}

func (t *Task) setSession(sessionURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusUploading {
		return fmt.Errorf("%w: session assigned while %s", ErrInvalidTransition, t.status)
	}
	if t.sessionURL != "" {
		return fmt.Errorf("%w: task already has a session", ErrInvalidTransition)
	}
	t.sessionURL = sessionURL
	return nil
}

// confirm records an offset acknowledged by the server
func (t *Task) confirm(offset int64, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if offset < 0 || offset > t.file.Size {
		return fmt.Errorf("offset %d outside of [0, %d]", offset, t.file.Size)
	}
	t.offset = offset
	t.inFlight = 0
	t.speed.observe(now, offset)
	return nil
}

// transferred records bytes of the current chunk written to the network.
// It reports whether enough time has passed since the last sample to publish progress.
func (t *Task) transferred(sent int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusUploading {
		return false
	}
	t.inFlight = min(max(sent, 0), t.file.Size-t.offset)
	return t.speed.observe(now, t.offset+t.inFlight)
}

func (t *Task) noteRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryCount++
}

// resetRetries clears the retry count once a chunk is acknowledged
func (t *Task) resetRetries() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryCount = 0
}
