package task

import (
	"sort"
	"strings"
	"time"
)

// Board is an immutable view of the registry handed to presentation layers.
type Board struct {
	GeneratedAt time.Time
	Filter      string
	Selected    int32
	HasSelected bool
	Tasks       []Task
}

// Lookup returns the task with the provided pid.
func (b *Board) Lookup(pid int32) (Task, bool) {
	if b == nil {
		return Task{}, false
	}
	for _, t := range b.Tasks {
		if t.PID == pid {
			return t, true
		}
	}
	return Task{}, false
}

// Totals returns the summed CPU percentage and memory of all visible tasks.
func (b *Board) Totals() (cpu float64, memory uint64) {
	if b == nil {
		return 0, 0
	}
	for _, t := range b.Tasks {
		cpu += t.CPUPercent
		memory += t.MemoryBytes
	}
	return cpu, memory
}

// SortByName orders tasks by case-insensitive name, then pid.
func SortByName(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := strings.ToLower(tasks[i].Name), strings.ToLower(tasks[j].Name)
		if a != b {
			return a < b
		}
		return tasks[i].PID < tasks[j].PID
	})
}
