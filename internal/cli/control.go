package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/Paintersrp/tasktide/internal/api"
	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/task"
)

// ControlAPI exposes task manager operations for the HTTP control plane.
type ControlAPI struct {
	manager *engine.Manager
	now     func() time.Time
}

// NewControlAPI constructs a ControlAPI around a manager.
func NewControlAPI(manager *engine.Manager, now func() time.Time) *ControlAPI {
	if manager == nil {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &ControlAPI{manager: manager, now: now}
}

// Tasks returns the most recently published board.
func (c *ControlAPI) Tasks(ctx stdcontext.Context) (*api.BoardReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return api.NewBoardReport(c.manager.Board(), c.now()), nil
}

// Search applies a filter and returns the refreshed board.
func (c *ControlAPI) Search(ctx stdcontext.Context, query string) (*api.BoardReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := c.manager.Search(ctx, query); err != nil {
		return nil, err
	}
	return api.NewBoardReport(c.manager.Board(), c.now()), nil
}

// Select records the active selection.
func (c *ControlAPI) Select(ctx stdcontext.Context, pid int32) (*api.BoardReport, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := c.manager.Select(pid); err != nil {
		return nil, translateError(err)
	}
	return api.NewBoardReport(c.manager.Board(), c.now()), nil
}

// SetDeadline parses expr relative to now and applies it to pid.
func (c *ControlAPI) SetDeadline(ctx stdcontext.Context, pid int32, expr string) (*api.DeadlineResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	now := c.now()
	spec, err := task.ParseDeadline(expr, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrInvalidDeadline, err)
	}
	at, err := c.manager.SetDeadline(pid, spec)
	if err != nil {
		return nil, translateError(err)
	}
	return &api.DeadlineResult{
		PID:       pid,
		Deadline:  at,
		Remaining: task.FormatRemaining(&at, c.now()),
	}, nil
}

// ClearDeadline removes the deadline on pid.
func (c *ControlAPI) ClearDeadline(ctx stdcontext.Context, pid int32) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return translateError(c.manager.ClearDeadline(pid))
}

// Terminate ends pid. It blocks for the protocol's grace periods.
func (c *ControlAPI) Terminate(ctx stdcontext.Context, pid int32) (*api.TerminateResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := c.manager.Terminate(ctx, pid); err != nil {
		return nil, translateError(err)
	}
	return &api.TerminateResult{PID: pid, CompletedAt: c.now()}, nil
}

// Tick runs one scheduler pass immediately. Per-task failures are reported in
// the result rather than as an error.
func (c *ControlAPI) Tick(ctx stdcontext.Context) (*api.TickResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	report, err := c.manager.Tick(ctx)
	result := &api.TickResult{
		Terminated: nonNil(report.Terminated),
		Failed:     nonNil(report.Failed),
		Exited:     report.Exited,
	}
	for _, e := range unwrapJoined(err) {
		result.Errors = append(result.Errors, e.Error())
	}
	return result, nil
}

func checkContext(ctx stdcontext.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrTaskNotFound):
		return fmt.Errorf("%w: %w", api.ErrUnknownTask, err)
	case errors.Is(err, engine.ErrInvalidDeadline):
		return fmt.Errorf("%w: %w", api.ErrInvalidDeadline, err)
	case errors.Is(err, runtime.ErrPermissionDenied):
		return fmt.Errorf("%w: %w", api.ErrAccessDenied, err)
	default:
		return err
	}
}

func unwrapJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func nonNil(pids []int32) []int32 {
	if pids == nil {
		return []int32{}
	}
	return pids
}
