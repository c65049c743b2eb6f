// Package task defines the process records tracked by the engine and the
// pure functions that derive their deadline status.
package task

import (
	"fmt"
	"time"
)

// Status captures the derived lifecycle state of a task.
type Status string

const (
	StatusRunning         Status = "running"
	StatusDeadlineReached Status = "deadline_reached"
	StatusTerminated      Status = "terminated"
)

// Icon is an opaque reference to a cached bitmap resolved by an external
// collaborator. The zero value means no icon is available.
type Icon struct {
	Ref string `json:"ref,omitempty"`
}

// IsZero reports whether the icon carries no reference.
func (i Icon) IsZero() bool {
	return i.Ref == ""
}

// Task represents one observed OS process.
type Task struct {
	PID         int32
	Name        string
	ExePath     string
	CPUPercent  float64
	MemoryBytes uint64
	Deadline    *time.Time
	Icon        Icon
}

// StatusAt derives the task status at the provided instant.
func (t *Task) StatusAt(now time.Time) Status {
	return StatusFor(t.Deadline, now)
}

// StatusFor derives a status from an optional deadline.
func StatusFor(deadline *time.Time, now time.Time) Status {
	if deadline == nil {
		return StatusRunning
	}
	if now.After(*deadline) {
		return StatusDeadlineReached
	}
	return StatusRunning
}

// Clone returns a copy that shares no mutable state with t.
func (t *Task) Clone() Task {
	dup := *t
	if t.Deadline != nil {
		d := *t.Deadline
		dup.Deadline = &d
	}
	return dup
}

// FormatRemaining renders the time left before the deadline.
func FormatRemaining(deadline *time.Time, now time.Time) string {
	if deadline == nil {
		return "None"
	}
	if now.After(*deadline) {
		return "Expired"
	}
	remaining := deadline.Sub(now)
	minutes := int64(remaining / time.Minute)
	seconds := int64(remaining/time.Second) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds left", minutes, seconds)
	}
	return fmt.Sprintf("%ds left", seconds)
}
