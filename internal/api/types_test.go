package api

import (
	"testing"
	"time"

	"github.com/Paintersrp/tasktide/internal/task"
)

func TestNewBoardReport(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	board := &task.Board{
		GeneratedAt: now,
		Filter:      "e",
		Selected:    2,
		HasSelected: true,
		Tasks: []task.Task{
			{PID: 2, Name: "explorer.exe", CPUPercent: 1, MemoryBytes: 10},
			{PID: 1, Name: "Edge.exe", CPUPercent: 2, MemoryBytes: 20, Deadline: &past},
		},
	}

	report := NewBoardReport(board, now)
	if report.Selected == nil || *report.Selected != 2 {
		t.Fatalf("unexpected selection: %v", report.Selected)
	}
	if report.Totals.Tasks != 2 || report.Totals.CPUPercent != 3 || report.Totals.MemoryBytes != 30 {
		t.Fatalf("unexpected totals: %+v", report.Totals)
	}
	if report.Tasks[0].PID != 1 || report.Tasks[1].PID != 2 {
		t.Fatalf("tasks must be ordered by name: %+v", report.Tasks)
	}
	if report.Tasks[0].Status != task.StatusDeadlineReached || report.Tasks[0].Remaining != "Expired" {
		t.Fatalf("unexpected derived fields: %+v", report.Tasks[0])
	}
	if !report.Tasks[1].Selected || report.Tasks[0].Selected {
		t.Fatalf("selected flag misplaced: %+v", report.Tasks)
	}
	if board.Tasks[0].PID != 2 {
		t.Fatalf("board must not be reordered in place")
	}
}

func TestNewBoardReportNil(t *testing.T) {
	report := NewBoardReport(nil, time.Unix(5, 0))
	if report.Tasks == nil || len(report.Tasks) != 0 || report.Selected != nil {
		t.Fatalf("unexpected empty report: %+v", report)
	}
}
