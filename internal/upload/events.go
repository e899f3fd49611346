package upload

import "time"

// EventType names a task lifecycle event
type EventType string

const (
	EventQueued      EventType = "queued"
	EventStarted     EventType = "started"
	EventProgress    EventType = "progress"
	EventPaused      EventType = "paused"
	EventCompleted   EventType = "completed"
	EventError       EventType = "error"
	EventRemoved     EventType = "removed"
	EventAuthExpired EventType = "auth-expired"
)

// Event is published on the scheduler's event channel. Events of one task arrive in the order they happened.
type Event struct {
	Type    EventType
	TaskID  string
	Task    Snapshot
	Message string
	At      time.Time
}

// significant reports whether the event changes a task's status and warrants an immediate report
func (e Event) significant() bool {
	switch e.Type {
	case EventStarted, EventPaused, EventCompleted, EventError, EventRemoved:
		return true
	default:
		return false
	}
}
