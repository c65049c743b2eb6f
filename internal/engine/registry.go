package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/task"
)

// SearchScope controls what a search filter does to tasks that do not match.
type SearchScope string

const (
	// ScopeView hides non-matching tasks from the published board but keeps
	// them, and their deadlines, in the registry.
	ScopeView SearchScope = "view"
	// ScopeRegistry drops non-matching tasks from the registry entirely; their
	// deadlines are lost if the filter is later cleared.
	ScopeRegistry SearchScope = "registry"
)

// ParseSearchScope validates a scope name. Empty selects ScopeView.
func ParseSearchScope(s string) (SearchScope, error) {
	switch SearchScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeView:
		return ScopeView, nil
	case ScopeRegistry:
		return ScopeRegistry, nil
	default:
		return "", fmt.Errorf("unknown search scope %q", s)
	}
}

// IconResolver resolves an icon reference for an executable path.
type IconResolver interface {
	ResolveIcon(exePath string) (task.Icon, bool)
}

// Registry is the authoritative pid to task mapping. It is not safe for
// concurrent use; the Manager owns it exclusively.
type Registry struct {
	tasks    map[int32]*task.Task
	scope    SearchScope
	filter   string
	icons    IconResolver
	selected int32
	hasSel   bool
}

// NewRegistry constructs an empty registry.
func NewRegistry(scope SearchScope, icons IconResolver) *Registry {
	if scope == "" {
		scope = ScopeView
	}
	return &Registry{
		tasks: make(map[int32]*task.Task),
		scope: scope,
		icons: icons,
	}
}

// Refresh reconciles the registry with a snapshot. Known pids keep their
// name, deadline and icon while their counters are refreshed; unknown pids
// become new tasks; pids missing from the snapshot are dropped and returned as
// exited. The returned slice holds the tasks matching filter.
func (r *Registry) Refresh(records []runtime.ProcessRecord, filter string) (visible []task.Task, exited []task.Task) {
	seen := make(map[int32]struct{}, len(records))
	next := make(map[int32]*task.Task, len(records))

	for _, rec := range records {
		seen[rec.PID] = struct{}{}

		existing, known := r.tasks[rec.PID]
		name := rec.Name
		if known {
			name = existing.Name
		}
		if r.scope == ScopeRegistry && !matchesFilter(name, filter) {
			continue
		}

		if known {
			existing.CPUPercent = rec.CPUPercent
			existing.MemoryBytes = rec.MemoryBytes
			if existing.ExePath == "" {
				existing.ExePath = rec.ExePath
			}
			next[rec.PID] = existing
			continue
		}

		t := &task.Task{
			PID:         rec.PID,
			Name:        rec.Name,
			ExePath:     rec.ExePath,
			CPUPercent:  rec.CPUPercent,
			MemoryBytes: rec.MemoryBytes,
		}
		if r.icons != nil && rec.ExePath != "" {
			if icon, ok := r.icons.ResolveIcon(rec.ExePath); ok {
				t.Icon = icon
			}
		}
		next[rec.PID] = t
	}

	for pid, t := range r.tasks {
		if _, ok := seen[pid]; !ok {
			exited = append(exited, t.Clone())
		}
	}
	sortTasks(exited)

	r.tasks = next
	r.filter = filter
	r.ensureSelection()
	return r.Visible(), exited
}

// Visible returns copies of the tasks matching the current filter.
func (r *Registry) Visible() []task.Task {
	out := make([]task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if matchesFilter(t.Name, r.filter) {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out)
	return out
}

// Get returns the live task record for pid, hidden tasks included.
func (r *Registry) Get(pid int32) (*task.Task, bool) {
	t, ok := r.tasks[pid]
	return t, ok
}

// IsVisible reports whether pid is present and matches the current filter.
func (r *Registry) IsVisible(pid int32) bool {
	t, ok := r.tasks[pid]
	return ok && matchesFilter(t.Name, r.filter)
}

// Remove deletes pid and clears the selection if it referenced pid.
func (r *Registry) Remove(pid int32) (task.Task, bool) {
	t, ok := r.tasks[pid]
	if !ok {
		return task.Task{}, false
	}
	delete(r.tasks, pid)
	if r.hasSel && r.selected == pid {
		r.ClearSelection()
	}
	return t.Clone(), true
}

// Select records pid as the active selection. Selecting an absent or hidden
// task fails and leaves the current selection untouched.
func (r *Registry) Select(pid int32) error {
	if !r.IsVisible(pid) {
		return fmt.Errorf("select pid %d: %w", pid, ErrTaskNotFound)
	}
	r.selected = pid
	r.hasSel = true
	return nil
}

// Selection returns the selected pid, if any.
func (r *Registry) Selection() (int32, bool) {
	return r.selected, r.hasSel
}

// ClearSelection drops the active selection.
func (r *Registry) ClearSelection() {
	r.selected = 0
	r.hasSel = false
}

// Expired returns every task, hidden ones included, whose deadline has passed
// at now, ordered by pid.
func (r *Registry) Expired(now time.Time) []task.Task {
	var out []task.Task
	for _, t := range r.tasks {
		if t.StatusAt(now) == task.StatusDeadlineReached {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Len returns the number of tasks in the registry, hidden ones included.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// Filter returns the filter applied by the last refresh.
func (r *Registry) Filter() string {
	return r.filter
}

func (r *Registry) ensureSelection() {
	if r.hasSel && !r.IsVisible(r.selected) {
		r.ClearSelection()
	}
}

func matchesFilter(name, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

func sortTasks(tasks []task.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].PID < tasks[j].PID })
}
