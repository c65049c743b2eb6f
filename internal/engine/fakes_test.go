package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/window"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
	// onSleep runs after each Sleep, outside the clock lock.
	onSleep func(time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// fakeOS is a process table that serves both snapshots and process control.
// Killing a process removes it from later snapshots.
type fakeOS struct {
	mu          sync.Mutex
	procs       map[int32]runtime.ProcessRecord
	snapshotErr error
	existsErr   error
	checked     []int32
	openErr     map[int32]error
	killErr     map[int32]error
	opened      []int32
	killed      []int32
	closed      int
	exitCodes   []uint32
}

func newFakeOS(records ...runtime.ProcessRecord) *fakeOS {
	f := &fakeOS{
		procs:   make(map[int32]runtime.ProcessRecord),
		openErr: make(map[int32]error),
		killErr: make(map[int32]error),
	}
	for _, rec := range records {
		f.procs[rec.PID] = rec
	}
	return f
}

func (f *fakeOS) Snapshot(context.Context) ([]runtime.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	out := make([]runtime.ProcessRecord, 0, len(f.procs))
	for _, rec := range f.procs {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeOS) Exists(_ context.Context, pid int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, pid)
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.procs[pid]
	return ok, nil
}

func (f *fakeOS) Open(pid int32) (runtime.ProcessHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, pid)
	if err := f.openErr[pid]; err != nil {
		return nil, err
	}
	if _, ok := f.procs[pid]; !ok {
		return nil, runtime.ErrProcessNotFound
	}
	return &fakeHandle{os: f, pid: pid}, nil
}

func (f *fakeOS) exit(pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, pid)
}

func (f *fakeOS) spawn(rec runtime.ProcessRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[rec.PID] = rec
}

func (f *fakeOS) calls() (opened, killed []int32, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opened = append([]int32(nil), f.opened...)
	killed = append([]int32(nil), f.killed...)
	sort.Slice(killed, func(i, j int) bool { return killed[i] < killed[j] })
	return opened, killed, f.closed
}

type fakeHandle struct {
	os     *fakeOS
	pid    int32
	closed bool
}

func (h *fakeHandle) Kill(exitCode uint32) error {
	h.os.mu.Lock()
	defer h.os.mu.Unlock()
	if err := h.os.killErr[h.pid]; err != nil {
		return err
	}
	h.os.killed = append(h.os.killed, h.pid)
	h.os.exitCodes = append(h.os.exitCodes, exitCode)
	delete(h.os.procs, h.pid)
	return nil
}

func (h *fakeHandle) Close() error {
	h.os.mu.Lock()
	defer h.os.mu.Unlock()
	if h.closed {
		return errors.New("handle closed twice")
	}
	h.closed = true
	h.os.closed++
	return nil
}

type fakeLocator struct {
	windows map[string]runtime.Window
	calls   []string
}

func (l *fakeLocator) Locate(name string) (runtime.Window, window.Strategy, bool) {
	l.calls = append(l.calls, name)
	w, ok := l.windows[strings.ToLower(name)]
	if !ok {
		return 0, window.StrategyNone, false
	}
	return w, window.StrategyTitle, true
}

type fakeKeyboard struct {
	pressed  []runtime.Chord
	released []runtime.Chord
	err      error
}

func (k *fakeKeyboard) Press(c runtime.Chord) error {
	k.pressed = append(k.pressed, c)
	return k.err
}

func (k *fakeKeyboard) Release(c runtime.Chord) error {
	k.released = append(k.released, c)
	return nil
}

type saveList []string

func (s saveList) ShouldAttemptSave(name string) bool {
	upper := strings.ToUpper(name)
	for _, entry := range s {
		if strings.Contains(upper, strings.ToUpper(entry)) {
			return true
		}
	}
	return false
}

func records(pairs ...any) []runtime.ProcessRecord {
	var out []runtime.ProcessRecord
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, runtime.ProcessRecord{PID: int32(pairs[i].(int)), Name: pairs[i+1].(string)})
	}
	return out
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case evt := <-ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, evt := range events {
		out = append(out, evt.Type)
	}
	return out
}
