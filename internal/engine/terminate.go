package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Paintersrp/tasktide/internal/metrics"
	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/window"
)

const (
	defaultGracePeriod      = 2 * time.Second
	defaultFinalGracePeriod = time.Second
	defaultSaveAttempts     = 2
	defaultExitCode         = 1
)

var tracer = otel.Tracer("github.com/Paintersrp/tasktide/internal/engine")

// TerminatorConfig tunes the graceful termination protocol.
type TerminatorConfig struct {
	// GracePeriod is the wait after the first save signal.
	GracePeriod time.Duration
	// FinalGracePeriod is the wait after each repeated save signal.
	FinalGracePeriod time.Duration
	// SaveAttempts is the total number of save signals per termination. Zero
	// disables save attempts.
	SaveAttempts int
	ExitCode     uint32
	Shortcut     runtime.Chord
}

// DefaultTerminatorConfig returns the stock protocol timings.
func DefaultTerminatorConfig() TerminatorConfig {
	return TerminatorConfig{
		GracePeriod:      defaultGracePeriod,
		FinalGracePeriod: defaultFinalGracePeriod,
		SaveAttempts:     defaultSaveAttempts,
		ExitCode:         defaultExitCode,
		Shortcut:         runtime.SaveChord,
	}
}

// SaveClassifier decides whether a process is likely to hold unsaved work.
type SaveClassifier interface {
	ShouldAttemptSave(name string) bool
}

// Locator finds a window belonging to a process name.
type Locator interface {
	Locate(name string) (runtime.Window, window.Strategy, bool)
}

// Target identifies the process a termination acts upon.
type Target struct {
	PID     int32
	Name    string
	Trigger Trigger
}

// Outcome summarises a completed termination.
type Outcome struct {
	SaveAttempts int
	Strategy     window.Strategy
	// Gone is set when the process exited before it could be killed.
	Gone bool
}

// Terminator runs the graceful termination protocol: optional save attempt
// and grace period, handle acquisition, optional repeated save attempts with a
// shorter grace period, then a forced kill.
type Terminator struct {
	control  runtime.ProcessControl
	saves    SaveClassifier
	locator  Locator
	keyboard runtime.Keyboard
	clock    Clock
	cfg      TerminatorConfig
}

// TerminatorOption configures a Terminator.
type TerminatorOption func(*Terminator)

// WithSaveSupport enables save attempts for processes the classifier accepts.
func WithSaveSupport(saves SaveClassifier, locator Locator, keyboard runtime.Keyboard) TerminatorOption {
	return func(t *Terminator) {
		t.saves = saves
		t.locator = locator
		t.keyboard = keyboard
	}
}

// WithTerminatorConfig overrides the protocol timings.
func WithTerminatorConfig(cfg TerminatorConfig) TerminatorOption {
	return func(t *Terminator) {
		t.cfg = cfg
	}
}

// WithTerminatorClock overrides the clock used for grace periods.
func WithTerminatorClock(c Clock) TerminatorOption {
	return func(t *Terminator) {
		if c != nil {
			t.clock = c
		}
	}
}

// NewTerminator constructs a Terminator around the process control surface.
func NewTerminator(control runtime.ProcessControl, opts ...TerminatorOption) *Terminator {
	t := &Terminator{
		control: control,
		clock:   SystemClock(),
		cfg:     DefaultTerminatorConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cfg.SaveAttempts < 0 {
		t.cfg.SaveAttempts = 0
	}
	return t
}

// Terminate runs the protocol against target. It blocks for the full grace
// periods and cannot be cancelled once started. Events describing the save
// attempts are passed to report. A process that exits before the kill is a
// success with Outcome.Gone set.
func (t *Terminator) Terminate(ctx context.Context, target Target, report func(Event)) (out Outcome, err error) {
	if report == nil {
		report = func(Event) {}
	}
	_, span := tracer.Start(ctx, "terminate", trace.WithAttributes(
		attribute.Int("process.pid", int(target.PID)),
		attribute.String("process.name", target.Name),
		attribute.String("tasktide.trigger", string(target.Trigger)),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("tasktide.save_attempts", out.SaveAttempts),
			attribute.Bool("tasktide.gone", out.Gone),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// An existence check that errors falls through to the full protocol.
	if alive, existsErr := t.control.Exists(ctx, target.PID); existsErr == nil && !alive {
		out.Gone = true
		return out, nil
	}

	saving := t.saveApplies(target, report)
	if saving {
		if t.attemptSave(target, 1, &out, report) {
			t.clock.Sleep(t.cfg.GracePeriod)
		} else {
			saving = false
		}
	}

	handle, err := t.control.Open(target.PID)
	if errors.Is(err, runtime.ErrProcessNotFound) {
		out.Gone = true
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("acquire handle: %w", err)
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			report(Event{Type: EventTypeTerminating, Level: "warn", Message: "release process handle", Err: closeErr})
		}
	}()

	if saving {
		for attempt := 2; attempt <= t.cfg.SaveAttempts; attempt++ {
			t.attemptSave(target, attempt, &out, report)
			t.clock.Sleep(t.cfg.FinalGracePeriod)
		}
	}

	if err := handle.Kill(t.cfg.ExitCode); err != nil {
		if errors.Is(err, runtime.ErrProcessNotFound) {
			out.Gone = true
			return out, nil
		}
		return out, err
	}
	return out, nil
}

func (t *Terminator) saveApplies(target Target, report func(Event)) bool {
	if t.saves == nil || t.locator == nil || t.keyboard == nil || t.cfg.SaveAttempts == 0 {
		report(Event{Type: EventTypeSaveSkipped, Reason: ReasonSaveDisabled})
		return false
	}
	if !t.saves.ShouldAttemptSave(target.Name) {
		report(Event{Type: EventTypeSaveSkipped, Reason: ReasonNotSaveCapable})
		return false
	}
	return true
}

// attemptSave locates a window for the target and injects the save chord.
// Delivery is unconfirmed: the chord reaches whichever window holds focus.
func (t *Terminator) attemptSave(target Target, attempt int, out *Outcome, report func(Event)) bool {
	_, strategy, ok := t.locator.Locate(target.Name)
	if !ok {
		metrics.ObserveSaveAttempt(metrics.SaveResultNoWindow)
		report(Event{Type: EventTypeSaveSkipped, Attempt: attempt, Reason: ReasonWindowNotFound, Message: "no window found"})
		return false
	}
	if err := t.sendShortcut(); err != nil {
		metrics.ObserveSaveAttempt(metrics.SaveResultFailed)
		report(Event{Type: EventTypeSaveSkipped, Attempt: attempt, Reason: ReasonInjectFailed, Err: err})
		return false
	}
	metrics.ObserveSaveAttempt(metrics.SaveResultSent)
	out.SaveAttempts++
	out.Strategy = strategy
	report(Event{
		Type:    EventTypeSaveAttempted,
		Attempt: attempt,
		Message: fmt.Sprintf("sent %s (window via %s)", t.cfg.Shortcut, strategy),
	})
	return true
}

func (t *Terminator) sendShortcut() error {
	pressErr := t.keyboard.Press(t.cfg.Shortcut)
	releaseErr := t.keyboard.Release(t.cfg.Shortcut)
	return errors.Join(pressErr, releaseErr)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, runtime.ErrPermissionDenied):
		return ReasonPermissionDenied
	case errors.Is(err, runtime.ErrProcessNotFound):
		return ReasonProcessGone
	default:
		return ReasonKillFailed
	}
}
