package cliutil

import (
	"reflect"
	"testing"
	"time"

	"github.com/Paintersrp/tasktide/internal/task"
)

func TestTaskRow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(90 * time.Second)

	row := TaskRow(task.Task{
		PID:         321,
		Name:        "Code.exe",
		CPUPercent:  12.345,
		MemoryBytes: 1536,
		Deadline:    &deadline,
	}, now)

	want := []string{"321", "Code.exe", "12.3%", "1.5KiB", "1m 30s left", "running"}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("TaskRow = %v, want %v", row, want)
	}
	if len(row) != len(TaskColumns) {
		t.Fatalf("row and column counts differ")
	}
}

func TestSummary(t *testing.T) {
	board := &task.Board{Tasks: []task.Task{
		{PID: 1, CPUPercent: 1.5, MemoryBytes: 1 << 20},
		{PID: 2, CPUPercent: 2.5, MemoryBytes: 1 << 20},
	}}
	if got, want := Summary(board), "Tasks: 2 | CPU: 4.0% | Memory: 2MiB"; got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
	if got := Summary(nil); got != "Tasks: 0" {
		t.Fatalf("Summary(nil) = %q", got)
	}
}
