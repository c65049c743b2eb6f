package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/tasktide/internal/cliutil"
	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/task"
)

const (
	tableTitle          = "Tasks"
	logsTitle           = "Events"
	detailTitle         = "Selected"
	overlayPageName     = "overlay"
	defaultLogRetention = 500
	commandBuffer       = 32
	refreshInterval     = 500 * time.Millisecond
)

// Controller is the subset of the task manager driven by the UI.
type Controller interface {
	Board() *task.Board
	Search(ctx context.Context, query string) error
	Select(pid int32) error
	SetDeadline(pid int32, spec task.DeadlineSpec) (time.Time, error)
	ClearDeadline(pid int32) error
	Terminate(ctx context.Context, pid int32) error
}

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of event records retained.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// WithNow overrides the clock used to derive statuses and remaining time.
func WithNow(now func() time.Time) Option {
	return func(u *UI) {
		if now != nil {
			u.now = now
		}
	}
}

// WithEventSource consumes events from src in addition to EventSink. The UI
// never closes src.
func WithEventSource(src <-chan engine.Event) Option {
	return func(u *UI) {
		u.source = src
	}
}

// WithScreen renders onto the provided screen instead of the terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(u *UI) {
		u.app.SetScreen(screen)
	}
}

// UI coordinates the interactive task manager backed by tview.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	header *tview.TextView
	table  *tview.Table
	detail *tview.TextView
	logs   *tview.TextView
	events chan engine.Event
	source <-chan engine.Event
	ctrl   Controller

	commands chan command

	records     []cliutil.LogRecord
	visible     []task.Task
	selected    int32
	hasSelected bool
	logsPretty  bool
	filter      string
	logsFocused bool
	maxLogs     int
	now         func() time.Time

	mu sync.RWMutex

	// programmatic is set while the UI moves the table cursor itself so the
	// selection callback does not re-enter mu.
	programmatic atomic.Bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type command struct {
	name string
	run  func(context.Context) error
}

// New constructs a UI driving ctrl.
func New(ctrl Controller, opts ...Option) *UI {
	app := tview.NewApplication()

	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBorder(true).SetTitle("tasktide")

	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	detail := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	detail.SetBorder(true).SetTitle(detailTitle)

	logs := tview.NewTextView().SetDynamicColors(false).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)

	body := tview.NewFlex().
		AddItem(table, 0, 3, true).
		AddItem(detail, 36, 0, false)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(body, 0, 3, true).
		AddItem(logs, 0, 1, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := &UI{
		app:        app,
		pages:      pages,
		header:     header,
		table:      table,
		detail:     detail,
		logs:       logs,
		events:     make(chan engine.Event, 256),
		ctrl:       ctrl,
		commands:   make(chan command, commandBuffer),
		logsPretty: false,
		maxLogs:    defaultLogRetention,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		if ui.programmatic.Load() {
			return
		}
		ui.mu.Lock()
		changed := ui.syncSelectionLocked(row)
		pid, ok := ui.selected, ui.hasSelected
		ui.renderDetailLocked()
		ui.mu.Unlock()
		if changed && ok {
			ui.dispatch("select", func(context.Context) error {
				return ui.ctrl.Select(pid)
			})
		}
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where manager events should be delivered.
func (u *UI) EventSink() chan<- engine.Event {
	return u.events
}

// CloseEvents releases the event channel, allowing internal goroutines to exit cleanly.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes events and commands until
// Stop is invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(2)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()
	go func() {
		defer u.wg.Done()
		u.runCommands(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.CloseEvents()
	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	draining := false
	ctxDone := ctx.Done()
	source := u.source

	for {
		var tick <-chan time.Time
		if !draining {
			tick = ticker.C
		}

		select {
		case <-ctxDone:
			if !draining {
				draining = true
				ticker.Stop()
			}
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
			u.queueRefresh()
		case evt, ok := <-source:
			if !ok {
				source = nil
				continue
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
			u.queueRefresh()
		case <-tick:
			u.queueRefresh()
		}
	}
}

// runCommands executes controller calls one at a time off the draw loop;
// terminations block for their grace periods.
func (u *UI) runCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-u.commands:
			u.execute(ctx, cmd)
			u.queueRefresh()
		}
	}
}

func (u *UI) execute(ctx context.Context, cmd command) {
	if err := cmd.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		u.applyEvent(engine.Event{
			Type:    engine.EventType(cmd.name),
			Level:   "error",
			Message: fmt.Sprintf("%s failed", cmd.name),
			Err:     err,
		})
	}
}

// drainCommands runs every queued command synchronously.
func (u *UI) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-u.commands:
			u.execute(ctx, cmd)
		default:
			return
		}
	}
}

func (u *UI) dispatch(name string, run func(context.Context) error) {
	select {
	case u.commands <- command{name: name, run: run}:
	default:
		u.applyEvent(engine.Event{Type: engine.EventType(name), Level: "warn", Message: "busy; command dropped"})
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if u.overlayActive() {
		return event
	}
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyDelete:
		u.confirmTerminate()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showSearchPrompt()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		case '1':
			u.setDeadline(task.In30Minutes)
			return nil
		case '2':
			u.setDeadline(task.In1Hour)
			return nil
		case '3':
			u.setDeadline(task.In2Hours)
			return nil
		case 'c', 'C':
			u.showCustomDeadlinePrompt()
			return nil
		case 'x', 'X':
			u.clearDeadline()
			return nil
		case 'K':
			u.confirmTerminate()
			return nil
		}
	}
	return event
}

func (u *UI) overlayActive() bool {
	return u.pages.HasPage(overlayPageName)
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) currentSelection() (task.Task, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if !u.hasSelected {
		return task.Task{}, false
	}
	for _, t := range u.visible {
		if t.PID == u.selected {
			return t, true
		}
	}
	return task.Task{}, false
}

func (u *UI) setDeadline(spec task.DeadlineSpec) {
	t, ok := u.currentSelection()
	if !ok {
		return
	}
	u.dispatch("set_deadline", func(context.Context) error {
		_, err := u.ctrl.SetDeadline(t.PID, spec)
		return err
	})
}

func (u *UI) clearDeadline() {
	t, ok := u.currentSelection()
	if !ok {
		return
	}
	u.dispatch("clear_deadline", func(context.Context) error {
		return u.ctrl.ClearDeadline(t.PID)
	})
}

func (u *UI) showSearchPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Search: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.applySearch(input.GetText())
			u.closeOverlay()
		}).
		AddButton("Cancel", u.closeOverlay)

	form.SetBorder(true).SetTitle("Search Tasks")
	u.showOverlay(form, 60, 7)
	u.app.SetFocus(input)
}

func (u *UI) applySearch(query string) {
	query = strings.TrimSpace(query)
	u.mu.Lock()
	u.filter = query
	u.mu.Unlock()
	u.dispatch("search", func(ctx context.Context) error {
		return u.ctrl.Search(ctx, query)
	})
}

func (u *UI) showCustomDeadlinePrompt() {
	t, ok := u.currentSelection()
	if !ok {
		return
	}

	input := tview.NewInputField().
		SetLabel("Minutes: ").
		SetFieldWidth(10).
		SetAcceptanceFunc(tview.InputFieldInteger)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Set", func() {
			u.applyCustomDeadline(t.PID, input.GetText())
		}).
		AddButton("Cancel", u.closeOverlay)

	form.SetBorder(true).SetTitle(fmt.Sprintf("Deadline for %s", t.Name))
	u.showOverlay(form, 50, 7)
	u.app.SetFocus(input)
}

func (u *UI) applyCustomDeadline(pid int32, text string) {
	minutes := strings.TrimSpace(text)
	_, numErr := strconv.Atoi(minutes)
	spec, err := task.ParseDeadline(minutes, u.now())
	if numErr != nil || err != nil {
		u.showErrorModal(fmt.Sprintf("Invalid number of minutes: %q", text))
		return
	}
	u.closeOverlay()
	u.dispatch("set_deadline", func(context.Context) error {
		_, err := u.ctrl.SetDeadline(pid, spec)
		return err
	})
}

func (u *UI) confirmTerminate() {
	t, ok := u.currentSelection()
	if !ok {
		return
	}
	modal := tview.NewModal().
		SetText(fmt.Sprintf("End %s (pid %d)?\nUnsaved work may be lost.", t.Name, t.PID)).
		AddButtons([]string{"End task", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.closeOverlay()
			if buttonLabel == "End task" {
				u.terminate(t.PID)
			}
		})
	u.pages.RemovePage(overlayPageName)
	u.pages.AddPage(overlayPageName, modal, true, true)
	u.app.SetFocus(modal)
}

func (u *UI) terminate(pid int32) {
	u.dispatch("terminate", func(ctx context.Context) error {
		return u.ctrl.Terminate(ctx, pid)
	})
}

func (u *UI) showOverlay(p tview.Primitive, width, height int) {
	grid := tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)

	u.pages.RemovePage(overlayPageName)
	u.pages.AddPage(overlayPageName, grid, true, true)
}

func (u *UI) closeOverlay() {
	u.pages.RemovePage(overlayPageName)
	u.app.SetFocus(u.table)
	u.logsFocused = false
}

func (u *UI) showErrorModal(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.closeOverlay()
		})

	u.pages.RemovePage(overlayPageName)
	u.pages.AddPage(overlayPageName, modal, true, true)
	u.app.SetFocus(modal)
}

func (u *UI) applyEvent(evt engine.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = u.now()
	}
	record := cliutil.NewLogRecord(evt)

	u.mu.Lock()
	u.records = append(u.records, record)
	if len(u.records) > u.maxLogs {
		trim := len(u.records) - u.maxLogs
		u.records = append([]cliutil.LogRecord(nil), u.records[trim:]...)
	}
	u.mu.Unlock()
}

func (u *UI) queueRefresh() {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshLocked()
	})
}

func (u *UI) refreshLocked() {
	u.refreshTableLocked()
	u.renderDetailLocked()
	u.renderLogsLocked()
}

func (u *UI) refreshTableLocked() {
	board := u.ctrl.Board()
	now := u.now()

	u.header.SetText(fmt.Sprintf(" %s   [::d]/ search  1/2/3 deadline  c custom  x clear  K end task  j json  q quit", cliutil.Summary(board)))

	u.table.Clear()
	for col, header := range cliutil.TaskColumns {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	var tasks []task.Task
	if board != nil {
		tasks = append(tasks, board.Tasks...)
	}
	task.SortByName(tasks)
	u.visible = tasks

	if u.filter != "" {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filter))
	} else {
		u.table.SetTitle(tableTitle)
	}

	for row, t := range tasks {
		reached := t.StatusAt(now) == task.StatusDeadlineReached
		for col, value := range cliutil.TaskRow(t, now) {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(t.PID)
			}
			if reached {
				cell = cell.SetTextColor(tcell.ColorRed)
			}
			u.table.SetCell(row+1, col, cell)
		}
	}

	u.ensureSelectionLocked()
}

func (u *UI) renderDetailLocked() {
	u.detail.Clear()
	var (
		t     task.Task
		found bool
	)
	if u.hasSelected {
		for _, candidate := range u.visible {
			if candidate.PID == u.selected {
				t, found = candidate, true
				break
			}
		}
	}
	if !found {
		fmt.Fprint(u.detail, "No task selected")
		return
	}

	now := u.now()
	deadline := "None"
	if t.Deadline != nil {
		deadline = t.Deadline.Local().Format("15:04:05")
	}
	fmt.Fprintf(u.detail, "[::b]%s[::-]\n\n", tview.Escape(t.Name))
	fmt.Fprintf(u.detail, "PID:       %d\n", t.PID)
	fmt.Fprintf(u.detail, "CPU:       %s\n", cliutil.FormatCPU(t.CPUPercent))
	fmt.Fprintf(u.detail, "Memory:    %s\n", cliutil.FormatMemory(t.MemoryBytes))
	fmt.Fprintf(u.detail, "Status:    %s\n", t.StatusAt(now))
	fmt.Fprintf(u.detail, "Deadline:  %s\n", deadline)
	fmt.Fprintf(u.detail, "Remaining: %s\n", task.FormatRemaining(t.Deadline, now))
	if t.ExePath != "" {
		fmt.Fprintf(u.detail, "\n%s\n", tview.Escape(t.ExePath))
	}
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	u.logs.SetTitle(fmt.Sprintf("%s (%d)", logsTitle, len(u.records)))

	for _, record := range u.records {
		if !u.logsPretty {
			fmt.Fprintln(u.logs, formatRecord(record))
			continue
		}
		data, err := json.Marshal(record)
		if err != nil {
			fmt.Fprintf(u.logs, "{\"error\":\"%v\"}\n", err)
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", data)
	}
	u.logs.ScrollToEnd()
}

func formatRecord(r cliutil.LogRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", r.Timestamp.Local().Format("15:04:05"), strings.ToUpper(r.Level), r.Type)
	if r.PID != 0 {
		fmt.Fprintf(&b, " %s(%d)", r.Name, r.PID)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, " %s", r.Message)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", r.Reason)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, " error=%q", r.Error)
	}
	return b.String()
}

func (u *UI) ensureSelectionLocked() {
	u.programmatic.Store(true)
	defer u.programmatic.Store(false)

	if len(u.visible) == 0 {
		u.hasSelected = false
		u.selected = 0
		u.table.Select(0, 0)
		return
	}

	idx := -1
	if u.hasSelected {
		for i, t := range u.visible {
			if t.PID == u.selected {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		idx = 0
		u.selected = u.visible[0].PID
		u.hasSelected = true
	}
	u.table.Select(idx+1, 0)
}

// syncSelectionLocked records the task at row as selected and reports
// whether the selection changed.
func (u *UI) syncSelectionLocked(row int) bool {
	if row <= 0 || row-1 >= len(u.visible) {
		return false
	}
	pid := u.visible[row-1].PID
	changed := !u.hasSelected || u.selected != pid
	u.selected = pid
	u.hasSelected = true
	return changed
}
