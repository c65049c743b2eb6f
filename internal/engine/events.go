package engine

import (
	"time"
)

// EventType captures lifecycle notifications emitted by the manager and the
// termination protocol.
type EventType string

const (
	EventTypeDeadlineSet     EventType = "deadline_set"
	EventTypeDeadlineCleared EventType = "deadline_cleared"
	EventTypeDeadlineReached EventType = "deadline_reached"
	EventTypeTerminating     EventType = "terminating"
	EventTypeSaveAttempted   EventType = "save_attempted"
	EventTypeSaveSkipped     EventType = "save_skipped"
	EventTypeTerminated      EventType = "terminated"
	EventTypeTerminateFailed EventType = "terminate_failed"
	EventTypeExited          EventType = "exited"
	EventTypeRefreshFailed   EventType = "refresh_failed"
	// EventTypeEventsDropped is synthesized by consumers that had to discard
	// events because they fell behind.
	EventTypeEventsDropped EventType = "events_dropped"
)

// Trigger records who asked for a termination.
type Trigger string

const (
	TriggerUser     Trigger = "user"
	TriggerDeadline Trigger = "deadline"
)

// Event represents a single lifecycle notification.
type Event struct {
	Timestamp time.Time
	PID       int32
	Name      string
	Type      EventType
	Message   string
	Level     string
	Err       error
	Attempt   int
	AttemptID string
	Trigger   Trigger
	Reason    string
}

const (
	ReasonNotSaveCapable   = "not_save_capable"
	ReasonSaveDisabled     = "save_disabled"
	ReasonWindowNotFound   = "window_not_found"
	ReasonInjectFailed     = "inject_failed"
	ReasonPermissionDenied = "permission_denied"
	ReasonProcessGone      = "process_gone"
	ReasonKillFailed       = "kill_failed"
	ReasonSnapshotFailed   = "snapshot_failed"
)

// emitter delivers events without blocking the single control thread; events
// are dropped when the consumer falls behind.
type emitter struct {
	events chan<- Event
	now    func() time.Time
}

func (e emitter) emit(evt Event) {
	if e.events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now()
	}
	if evt.Level == "" {
		evt.Level = "info"
		if evt.Err != nil {
			evt.Level = "error"
		}
	}
	select {
	case e.events <- evt:
	default:
	}
}
