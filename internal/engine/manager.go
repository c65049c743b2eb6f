package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Paintersrp/tasktide/internal/metrics"
	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/task"
)

const defaultTickInterval = time.Second

var (
	// ErrTaskNotFound reports a command addressed to a pid the registry does
	// not hold.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidDeadline reports a deadline specification that cannot be
	// applied.
	ErrInvalidDeadline = task.ErrInvalidDeadline
)

// TickReport summarises the terminations driven by one tick.
type TickReport struct {
	Terminated []int32
	Failed     []int32
	// Exited lists expired tasks whose process was already gone.
	Exited []int32
}

// Manager owns the registry and serializes every command and tick. Readers
// obtain the latest board through Board without taking the lock.
type Manager struct {
	mu         sync.Mutex
	registry   *Registry
	snapshots  runtime.Snapshotter
	terminator *Terminator
	clock      Clock
	interval   time.Duration
	scope      SearchScope
	icons      IconResolver
	filter     string
	events     emitter
	newID      func() string

	// announced tracks the deadline each pid was last reported as reached
	// for, so deadline_reached fires once per deadline rather than per tick.
	announced map[int32]time.Time

	board atomic.Pointer[task.Board]
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for status derivation and deadlines.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithEvents directs lifecycle events to ch. Sends never block.
func WithEvents(ch chan<- Event) Option {
	return func(m *Manager) {
		m.events.events = ch
	}
}

// WithTickInterval sets the period used by Run.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithSearchScope selects how search filters treat non-matching tasks.
func WithSearchScope(scope SearchScope) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// WithIconResolver installs a best-effort icon resolver for new tasks.
func WithIconResolver(r IconResolver) Option {
	return func(m *Manager) {
		m.icons = r
	}
}

// WithAttemptIDs overrides the generator for termination attempt ids.
func WithAttemptIDs(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a Manager. The registry starts empty; call Refresh or
// Tick to populate it.
func NewManager(snapshots runtime.Snapshotter, terminator *Terminator, opts ...Option) *Manager {
	m := &Manager{
		snapshots:  snapshots,
		terminator: terminator,
		clock:      SystemClock(),
		interval:   defaultTickInterval,
		scope:      ScopeView,
		newID:      uuid.NewString,
		announced:  make(map[int32]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events.now = m.clock.Now
	m.registry = NewRegistry(m.scope, m.icons)
	m.publishLocked()
	return m
}

// Board returns the most recently published board. The result must not be
// mutated.
func (m *Manager) Board() *task.Board {
	return m.board.Load()
}

// Interval returns the tick period used by Run.
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// Refresh reconciles the registry with a fresh snapshot using the current
// filter.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// Search stores query as the active filter and refreshes. It never terminates
// anything.
func (m *Manager) Search(ctx context.Context, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = query
	return m.refreshLocked(ctx)
}

// Select records pid as the active selection.
func (m *Manager) Select(pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registry.Select(pid); err != nil {
		return err
	}
	m.publishLocked()
	return nil
}

// ClearSelection drops the active selection.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.ClearSelection()
	m.publishLocked()
}

// SetDeadline resolves spec against the current time and stores it on pid,
// overwriting any previous deadline.
func (m *Manager) SetDeadline(pid int32, spec task.DeadlineSpec) (time.Time, error) {
	if spec.Kind == task.DeadlineCustom && spec.At.IsZero() {
		return time.Time{}, fmt.Errorf("custom deadline without timestamp: %w", ErrInvalidDeadline)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.registry.Get(pid)
	if !ok {
		return time.Time{}, fmt.Errorf("set deadline for pid %d: %w", pid, ErrTaskNotFound)
	}
	at := spec.Resolve(m.clock.Now())
	t.Deadline = &at
	delete(m.announced, pid)

	m.events.emit(Event{
		PID:     pid,
		Name:    t.Name,
		Type:    EventTypeDeadlineSet,
		Message: fmt.Sprintf("deadline %s (%s)", at.Format(time.RFC3339), spec),
	})
	m.publishLocked()
	return at, nil
}

// ClearDeadline removes the deadline on pid. Clearing a task without a
// deadline is a no-op.
func (m *Manager) ClearDeadline(pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.registry.Get(pid)
	if !ok {
		return fmt.Errorf("clear deadline for pid %d: %w", pid, ErrTaskNotFound)
	}
	if t.Deadline == nil {
		return nil
	}
	t.Deadline = nil
	delete(m.announced, pid)

	m.events.emit(Event{PID: pid, Name: t.Name, Type: EventTypeDeadlineCleared})
	m.publishLocked()
	return nil
}

// Terminate runs the graceful termination protocol against pid on behalf of
// the user. Terminating a pid the registry does not hold succeeds without
// touching the OS.
func (m *Manager) Terminate(ctx context.Context, pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.registry.Get(pid)
	if !ok {
		return nil
	}
	_, err := m.terminateLocked(ctx, t.Clone(), TriggerUser)
	m.publishLocked()
	return err
}

// Tick refreshes the registry and terminates every task whose deadline has
// passed, one after another. A refresh failure is reported but does not stop
// the scan over already known tasks.
func (m *Manager) Tick(ctx context.Context) (TickReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	defer func() { metrics.ObserveTick(time.Since(started)) }()

	var (
		report TickReport
		errs   []error
	)
	if err := m.refreshLocked(ctx); err != nil {
		errs = append(errs, err)
	}

	now := m.clock.Now()
	for _, expired := range m.registry.Expired(now) {
		if announcedAt, ok := m.announced[expired.PID]; !ok || !announcedAt.Equal(*expired.Deadline) {
			m.announced[expired.PID] = *expired.Deadline
			m.events.emit(Event{
				PID:     expired.PID,
				Name:    expired.Name,
				Type:    EventTypeDeadlineReached,
				Trigger: TriggerDeadline,
			})
		}

		// An earlier termination in this tick may have taken the process
		// with it.
		if _, ok := m.registry.Get(expired.PID); !ok {
			continue
		}
		out, err := m.terminateLocked(ctx, expired, TriggerDeadline)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, expired.PID)
			errs = append(errs, err)
		case out.Gone:
			report.Exited = append(report.Exited, expired.PID)
		default:
			report.Terminated = append(report.Terminated, expired.PID)
		}
	}

	m.publishLocked()
	return report, errors.Join(errs...)
}

// Run drives Tick every interval until ctx is cancelled. Tick errors are
// surfaced through events; Run only returns the context error.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = m.Tick(ctx)
		}
	}
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	records, err := m.snapshots.Snapshot(ctx)
	if err != nil {
		m.events.emit(Event{
			Type:   EventTypeRefreshFailed,
			Reason: ReasonSnapshotFailed,
			Err:    err,
		})
		return fmt.Errorf("snapshot processes: %w", err)
	}

	_, exited := m.registry.Refresh(records, m.filter)
	for _, t := range exited {
		delete(m.announced, t.PID)
		m.events.emit(Event{PID: t.PID, Name: t.Name, Type: EventTypeExited})
	}
	m.publishLocked()
	return nil
}

// terminateLocked runs the protocol for t. A process found gone along the way
// is dropped from the registry and reported as exited, not as a failure.
func (m *Manager) terminateLocked(ctx context.Context, t task.Task, trigger Trigger) (Outcome, error) {
	attemptID := m.newID()
	base := Event{PID: t.PID, Name: t.Name, AttemptID: attemptID, Trigger: trigger}
	report := func(evt Event) {
		evt.PID, evt.Name, evt.AttemptID, evt.Trigger = base.PID, base.Name, base.AttemptID, base.Trigger
		m.events.emit(evt)
	}

	evt := base
	evt.Type = EventTypeTerminating
	m.events.emit(evt)

	out, err := m.terminator.Terminate(ctx, Target{PID: t.PID, Name: t.Name, Trigger: trigger}, report)
	if err != nil {
		metrics.ObserveTermination(string(trigger), metrics.OutcomeFailed)
		evt := base
		evt.Type = EventTypeTerminateFailed
		evt.Err = err
		evt.Reason = reasonFor(err)
		m.events.emit(evt)
		return out, fmt.Errorf("terminate pid %d (%s): %w", t.PID, t.Name, err)
	}

	m.registry.Remove(t.PID)
	delete(m.announced, t.PID)

	if out.Gone {
		metrics.ObserveTermination(string(trigger), metrics.OutcomeGone)
		evt = base
		evt.Type = EventTypeExited
		evt.Reason = ReasonProcessGone
		m.events.emit(evt)
		return out, nil
	}

	metrics.ObserveTermination(string(trigger), metrics.OutcomeTerminated)

	evt = base
	evt.Type = EventTypeTerminated
	evt.Attempt = out.SaveAttempts
	evt.Message = fmt.Sprintf("killed after %d save attempt(s)", out.SaveAttempts)
	m.events.emit(evt)
	return out, nil
}

func (m *Manager) publishLocked() {
	now := m.clock.Now()
	visible := m.registry.Visible()
	selected, hasSel := m.registry.Selection()
	m.board.Store(&task.Board{
		GeneratedAt: now,
		Filter:      m.registry.Filter(),
		Selected:    selected,
		HasSelected: hasSel,
		Tasks:       visible,
	})

	counts := map[string]int{
		string(task.StatusRunning):         0,
		string(task.StatusDeadlineReached): 0,
	}
	for _, t := range visible {
		counts[string(t.StatusAt(now))]++
	}
	metrics.SetTasks(counts)
}
