package cliutil

import (
	"fmt"
	"strconv"
	"time"

	units "github.com/docker/go-units"

	"github.com/Paintersrp/tasktide/internal/task"
)

// TaskColumns names the columns produced by TaskRow.
var TaskColumns = []string{"PID", "NAME", "CPU", "MEMORY", "DEADLINE", "STATUS"}

// TaskRow renders a task as table cells evaluated at now.
func TaskRow(t task.Task, now time.Time) []string {
	return []string{
		strconv.FormatInt(int64(t.PID), 10),
		t.Name,
		FormatCPU(t.CPUPercent),
		FormatMemory(t.MemoryBytes),
		task.FormatRemaining(t.Deadline, now),
		string(t.StatusAt(now)),
	}
}

// FormatCPU renders a CPU percentage with one decimal.
func FormatCPU(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

// FormatMemory renders a byte count using binary units.
func FormatMemory(bytes uint64) string {
	return units.BytesSize(float64(bytes))
}

// Summary renders the header totals line for a board.
func Summary(b *task.Board) string {
	if b == nil {
		return "Tasks: 0"
	}
	cpu, mem := b.Totals()
	return fmt.Sprintf("Tasks: %d | CPU: %s | Memory: %s", len(b.Tasks), FormatCPU(cpu), FormatMemory(mem))
}
