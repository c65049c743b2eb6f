// Package logmux fans in engine events from several sources onto a single
// bounded channel for the log and UI consumers.
package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/tasktide/internal/engine"
)

// Mux fans in events from multiple sources and delivers them via a bounded
// channel. When downstream consumers cannot keep up and the output buffer would
// overflow, the mux drops events and later emits a synthesized events_dropped
// warning per pid carrying the number of discarded entries.
type Mux struct {
	out chan engine.Event
	now func() time.Time

	mu     sync.Mutex
	drops  map[int32]dropRecord
	inputs sync.WaitGroup
}

type dropRecord struct {
	count int
	name  string
}

// Option configures a Mux.
type Option func(*Mux)

// WithClock overrides the timestamp source for normalized and synthesized
// events.
func WithClock(now func() time.Time) Option {
	return func(m *Mux) {
		if now != nil {
			m.now = now
		}
	}
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int, opts ...Option) *Mux {
	if size <= 0 {
		size = 1
	}
	m := &Mux{
		out:   make(chan engine.Event, size),
		now:   time.Now,
		drops: make(map[int32]dropRecord),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan engine.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes events until the
// source channel is closed.
func (m *Mux) Add(source <-chan engine.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			m.deliver(m.normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop metadata,
// and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt engine.Event) {
	if !m.flushPending(evt.PID) {
		m.recordDrop(evt.PID, evt.Name, 1)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrop(evt.PID, evt.Name, 1)
}

func (m *Mux) flushPending(pid int32) bool {
	for {
		rec := m.takeDrops(pid)
		if rec.count == 0 {
			return true
		}
		if m.trySend(m.synthesizeDropEvent(pid, rec)) {
			continue
		}
		m.recordDrop(pid, rec.name, rec.count)
		return false
	}
}

func (m *Mux) takeDrops(pid int32) dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[pid]
	if rec.count != 0 {
		delete(m.drops, pid)
	}
	return rec
}

func (m *Mux) recordDrop(pid int32, name string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[pid]
	rec.count += count
	if name != "" {
		rec.name = name
	}
	m.drops[pid] = rec
}

func (m *Mux) flushDrops() {
	for pid, rec := range m.collectDrops() {
		m.out <- m.synthesizeDropEvent(pid, rec)
	}
}

func (m *Mux) collectDrops() map[int32]dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.drops) == 0 {
		return nil
	}
	dup := make(map[int32]dropRecord, len(m.drops))
	for pid, rec := range m.drops {
		if rec.count == 0 {
			continue
		}
		dup[pid] = rec
	}
	m.drops = make(map[int32]dropRecord)
	return dup
}

func (m *Mux) trySend(evt engine.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func (m *Mux) normalize(evt engine.Event) engine.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = m.now()
	}
	if evt.Level == "" {
		evt.Level = "info"
		if evt.Err != nil {
			evt.Level = "error"
		}
	}
	return evt
}

func (m *Mux) synthesizeDropEvent(pid int32, rec dropRecord) engine.Event {
	return engine.Event{
		Timestamp: m.now(),
		PID:       pid,
		Name:      rec.name,
		Type:      engine.EventTypeEventsDropped,
		Message:   fmt.Sprintf("dropped=%d", rec.count),
		Level:     "warn",
	}
}
