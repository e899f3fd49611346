package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/turbo360/crewupload/internal/tus"
)

// ErrTaskNotFound is returned for ids that are not in the registry
var ErrTaskNotFound = errors.New("task not found")

// AuthInvalidator is told when the server rejected the credentials
type AuthInvalidator interface {
	Invalidate()
}

// Options configures a Scheduler
type Options struct {
	Config   Config
	Transfer Transfer
	Auth     AuthInvalidator // Optional
	Timer    Timer           // Optional: defaults to real time
	Now      func() time.Time
}

// Scheduler owns the task registry and keeps at most Config.MaxConcurrent tasks uploading
type Scheduler struct {
	cfg    Config
	ctrl   *controller
	auth   AuthInvalidator
	now    func() time.Time
	events chan Event

	baseCtx    context.Context
	baseCancel context.CancelFunc
	closed     chan struct{}
	closeOnce  sync.Once

	mu      sync.Mutex
	tasks   map[string]*entry
	order   []string
	byPath  map[string]string
	active  bool
	running int
	changed chan struct{}
}

// entry is the scheduler's bookkeeping for one task
type entry struct {
	task *Task

	// queued marks a paused or pending task as wanting a slot outside of an active run
	queued   bool
	removing bool

	// announcing holds a task back from admission until its queued event is out
	announcing bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler; its events must be consumed, usually by a Bus
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Transfer == nil {
		return nil, errors.New("transfer is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := opts.Config.withDefaults()
	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:        cfg,
		auth:       opts.Auth,
		now:        opts.Now,
		events:     make(chan Event, eventBufferSize),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		closed:     make(chan struct{}),
		tasks:      make(map[string]*entry),
		byPath:     make(map[string]string),
		changed:    make(chan struct{}),
	}
	s.ctrl = &controller{
		cfg:      cfg,
		transfer: opts.Transfer,
		timer:    opts.Timer,
		now:      opts.Now,
		emit:     s.emit,
	}
	return s, nil
}

// Events returns the lifecycle event stream
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Add registers files as pending tasks and returns their ids in order.
// A file whose path is already registered is skipped and its existing id returned.
func (s *Scheduler) Add(files ...File) []string {
	ids := make([]string, 0, len(files))
	var added []*Task

	s.mu.Lock()
	for _, file := range files {
		if id, ok := s.byPath[file.Path]; ok {
			slog.Debug("Skipping file already in queue", "path", file.Path, "taskID", id)
			ids = append(ids, id)
			continue
		}

		task := newTask(uuid.NewString(), file, s.cfg.SpeedSampleInterval)
		s.tasks[task.id] = &entry{task: task, announcing: true}
		s.order = append(s.order, task.id)
		s.byPath[file.Path] = task.id
		ids = append(ids, task.id)
		added = append(added, task)
	}
	s.mu.Unlock()

	for _, task := range added {
		s.publish(EventQueued, task, "")
	}

	s.mu.Lock()
	for _, task := range added {
		if e, ok := s.tasks[task.id]; ok {
			e.announcing = false
		}
	}
	s.admitLocked()
	s.notifyLocked()
	s.mu.Unlock()

	return ids
}

// StartAll activates a run: every pending task and every paused task is admitted in FIFO order as slots free up
func (s *Scheduler) StartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	for _, id := range s.order {
		e := s.tasks[id]
		if e.task.Status() == StatusPaused {
			e.queued = true
		}
	}
	s.admitLocked()
	s.notifyLocked()
}

// Start queues a pending or paused task and admits it if a slot is free
func (s *Scheduler) Start(id string) error {
	return s.enqueue(id, StatusPending, StatusPaused)
}

// Resume queues a paused task and admits it if a slot is free
func (s *Scheduler) Resume(id string) error {
	return s.enqueue(id, StatusPaused)
}

// Retry returns a failed task to pending and queues it; the upload starts over with a new session
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err := e.task.retry(); err != nil {
		s.mu.Unlock()
		return err
	}
	e.announcing = true
	s.mu.Unlock()

	s.publish(EventQueued, e.task, "")

	s.mu.Lock()
	e.announcing = false
	if !e.removing {
		e.queued = true
		s.admitLocked()
		s.notifyLocked()
	}
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) enqueue(id string, allowed ...Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	status := e.task.Status()
	for _, a := range allowed {
		if status == a {
			e.queued = true
			s.admitLocked()
			s.notifyLocked()
			return nil
		}
	}
	return fmt.Errorf("%w: cannot start a %s task", ErrInvalidTransition, status)
}

// Pause stops an uploading task at the current offset and waits for its worker to exit.
// A pending task that was queued loses its place.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	e.queued = false
	if e.cancel == nil {
		status := e.task.Status()
		s.mu.Unlock()
		if status == StatusPending {
			return nil
		}
		return fmt.Errorf("%w: cannot pause a %s task", ErrInvalidTransition, status)
	}

	e.cancel()
	done := e.done
	s.mu.Unlock()

	<-done
	return nil
}

// PauseAll ends the active run and pauses every uploading task. Pending tasks are untouched.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	s.active = false
	var waits []chan struct{}
	for _, id := range s.order {
		e := s.tasks[id]
		e.queued = false
		if e.cancel != nil {
			e.cancel()
			waits = append(waits, e.done)
		}
	}
	s.notifyLocked()
	s.mu.Unlock()

	for _, done := range waits {
		<-done
	}
}

// Remove aborts the task if it is uploading, waits for its worker and drops it from the registry
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	s.mu.Unlock()

	s.drop([]*entry{e})
	return nil
}

// ClearCompleted drops every completed task
func (s *Scheduler) ClearCompleted() {
	s.mu.Lock()
	var completed []*entry
	for _, id := range s.order {
		if e := s.tasks[id]; e.task.Status() == StatusCompleted {
			completed = append(completed, e)
		}
	}
	s.mu.Unlock()

	s.drop(completed)
}

// ClearAll aborts every upload and empties the registry
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	s.active = false
	all := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.tasks[id])
	}
	s.mu.Unlock()

	s.drop(all)
}

func (s *Scheduler) drop(entries []*entry) {
	var waits []chan struct{}

	s.mu.Lock()
	for _, e := range entries {
		e.removing = true
		e.queued = false
		if e.cancel != nil {
			e.cancel()
			waits = append(waits, e.done)
		}
	}
	s.mu.Unlock()

	for _, done := range waits {
		<-done
	}

	var removed []*Task
	s.mu.Lock()
	for _, e := range entries {
		id := e.task.id
		if _, ok := s.tasks[id]; !ok {
			continue
		}
		delete(s.tasks, id)
		delete(s.byPath, e.task.file.Path)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		removed = append(removed, e.task)
	}
	s.notifyLocked()
	s.mu.Unlock()

	for _, task := range removed {
		s.publish(EventRemoved, task, "")
	}
}

// Task returns a snapshot of one task
func (s *Scheduler) Task(id string) (Snapshot, error) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return e.task.Snapshot(s.now()), nil
}

// Tasks returns snapshots of every task in insertion order
func (s *Scheduler) Tasks() []Snapshot {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id].task)
	}
	s.mu.Unlock()

	now := s.now()
	snapshots := make([]Snapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshots = append(snapshots, task.Snapshot(now))
	}
	return snapshots
}

// IsUploading reports whether at least one task is uploading
func (s *Scheduler) IsUploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running > 0
}

// Wait blocks until no task is uploading. Admission happens before a worker exits,
// so an idle scheduler has nothing left that it would start on its own.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.running == 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close aborts every worker and stops publishing events
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.PauseAll()
		s.baseCancel()
	})
}

// admitLocked starts eligible tasks in FIFO order until every slot is taken
func (s *Scheduler) admitLocked() {
	for _, id := range s.order {
		if s.running >= s.cfg.MaxConcurrent {
			return
		}

		e := s.tasks[id]
		if e.cancel != nil || e.removing || e.announcing {
			continue
		}

		status := e.task.Status()
		eligible := e.queued && (status == StatusPending || status == StatusPaused)
		if s.active && status == StatusPending {
			eligible = true
		}
		if !eligible {
			continue
		}

		if err := e.task.start(s.now()); err != nil {
			slog.Error("Failed to start task", "taskID", id, "error", err)
			continue
		}

		ctx, cancel := context.WithCancel(s.baseCtx)
		e.queued = false
		e.cancel = cancel
		e.done = make(chan struct{})
		s.running++

		go s.work(ctx, e)
	}
}

// work runs in the task's own goroutine for the whole uploading period
func (s *Scheduler) work(ctx context.Context, e *entry) {
	defer close(e.done)

	task := e.task
	s.publish(EventStarted, task, "")
	slog.Info("Upload started", "taskID", task.id, "file", task.file.Name, "size", task.file.Size)

	err := s.ctrl.run(ctx, task)

	var published []func()
	switch {
	case err == nil:
		if cErr := task.complete(s.now()); cErr != nil {
			slog.Error("Failed to complete task", "taskID", task.id, "error", cErr)
			err = cErr
			break
		}
		slog.Info("Upload completed", "taskID", task.id, "file", task.file.Name)
		published = append(published, func() { s.publish(EventCompleted, task, "") })

	case errors.Is(err, tus.ErrAborted):
		if pErr := task.pause(); pErr != nil {
			slog.Error("Failed to pause task", "taskID", task.id, "error", pErr)
		}
		s.mu.Lock()
		removing := e.removing
		s.mu.Unlock()
		if !removing {
			published = append(published, func() { s.publish(EventPaused, task, "") })
		}
		err = nil
	}

	if err != nil {
		message := Describe(err)
		if fErr := task.fail(message); fErr != nil {
			slog.Error("Failed to fail task", "taskID", task.id, "error", fErr)
		}
		slog.Warn("Upload failed", "taskID", task.id, "file", task.file.Name, "error", err)
		published = append(published, func() { s.publish(EventError, task, message) })

		if errors.Is(err, tus.ErrAuthExpired) {
			if s.auth != nil {
				s.auth.Invalidate()
			}
			published = append(published, func() { s.publish(EventAuthExpired, task, message) })
		}
	}

	// Publish before releasing the slot so a replacement's started event follows this outcome
	for _, p := range published {
		p()
	}

	s.mu.Lock()
	e.cancel()
	e.cancel = nil
	s.running--
	s.admitLocked()
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Scheduler) publish(t EventType, task *Task, message string) {
	now := s.now()
	s.emit(Event{Type: t, TaskID: task.id, Task: task.Snapshot(now), Message: message, At: now})
}

// emit delivers ev unless the scheduler is closed; it must not be called with s.mu held
func (s *Scheduler) emit(ev Event) {
	select {
	case <-s.closed:
		return
	default:
	}

	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
