package api

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/Paintersrp/tasktide/internal/task"
)

var (
	ErrInvalidPID      = errors.New("invalid pid")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnknownTask     = errors.New("unknown task")
	ErrInvalidDeadline = errors.New("invalid deadline")
	ErrAccessDenied    = errors.New("access denied")
)

// TaskReport describes a single task as seen by API consumers.
type TaskReport struct {
	PID         int32       `json:"pid"`
	Name        string      `json:"name"`
	ExePath     string      `json:"exe_path,omitempty"`
	CPUPercent  float64     `json:"cpu_percent"`
	MemoryBytes uint64      `json:"memory_bytes"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Remaining   string      `json:"remaining"`
	Status      task.Status `json:"status"`
	Selected    bool        `json:"selected"`
	Icon        string      `json:"icon,omitempty"`
}

// Totals aggregates resource usage over the visible tasks.
type Totals struct {
	Tasks       int     `json:"tasks"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// BoardReport is the API rendition of the published task board.
type BoardReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Filter      string       `json:"filter"`
	Selected    *int32       `json:"selected"`
	Totals      Totals       `json:"totals"`
	Tasks       []TaskReport `json:"tasks"`
}

// NewBoardReport converts a board into its API form, evaluating statuses at
// now. Tasks are ordered by name, then pid.
func NewBoardReport(b *task.Board, now time.Time) *BoardReport {
	report := &BoardReport{Tasks: []TaskReport{}}
	if b == nil {
		report.GeneratedAt = now
		return report
	}
	report.GeneratedAt = b.GeneratedAt
	report.Filter = b.Filter
	if b.HasSelected {
		selected := b.Selected
		report.Selected = &selected
	}
	cpu, mem := b.Totals()
	report.Totals = Totals{Tasks: len(b.Tasks), CPUPercent: cpu, MemoryBytes: mem}

	tasks := append([]task.Task(nil), b.Tasks...)
	task.SortByName(tasks)
	for _, t := range tasks {
		report.Tasks = append(report.Tasks, NewTaskReport(t, now, b.HasSelected && b.Selected == t.PID))
	}
	return report
}

// NewTaskReport converts a task into its API form.
func NewTaskReport(t task.Task, now time.Time, selected bool) TaskReport {
	return TaskReport{
		PID:         t.PID,
		Name:        t.Name,
		ExePath:     t.ExePath,
		CPUPercent:  t.CPUPercent,
		MemoryBytes: t.MemoryBytes,
		Deadline:    t.Deadline,
		Remaining:   task.FormatRemaining(t.Deadline, now),
		Status:      t.StatusAt(now),
		Selected:    selected,
		Icon:        t.Icon.Ref,
	}
}

// DeadlineResult captures the outcome of setting a deadline.
type DeadlineResult struct {
	PID       int32     `json:"pid"`
	Deadline  time.Time `json:"deadline"`
	Remaining string    `json:"remaining"`
}

// TerminateResult captures the outcome of a termination request.
type TerminateResult struct {
	PID         int32     `json:"pid"`
	CompletedAt time.Time `json:"completed_at"`
}

// TickResult captures the terminations driven by a manual tick.
type TickResult struct {
	Terminated []int32  `json:"terminated"`
	Failed     []int32  `json:"failed"`
	Exited     []int32  `json:"exited,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Controller exposes task manager operations required by control servers.
type Controller interface {
	Tasks(stdcontext.Context) (*BoardReport, error)
	Search(stdcontext.Context, string) (*BoardReport, error)
	Select(stdcontext.Context, int32) (*BoardReport, error)
	SetDeadline(stdcontext.Context, int32, string) (*DeadlineResult, error)
	ClearDeadline(stdcontext.Context, int32) error
	Terminate(stdcontext.Context, int32) (*TerminateResult, error)
	Tick(stdcontext.Context) (*TickResult, error)
}
