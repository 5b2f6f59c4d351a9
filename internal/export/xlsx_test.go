package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fieldops/taskboard/internal/domain"
)

func openRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if list := f.GetSheetList(); len(list) != 1 || list[0] != sheet {
		t.Fatalf("sheets = %v, want [%s]", list, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	return rows
}

func TestTasksXLSX(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{Key: "TSK-00000001", Title: "Inspect pump", AssigneeID: "u1", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityHigh, DueAt: &due},
		{Key: "TSK-00000002", Title: "File report", AssigneeID: "u9", Status: domain.TaskStatusDone, Priority: domain.TaskPriorityLow},
	}
	data, err := TasksXLSX(tasks, map[string]string{"u1": "Dana"})
	if err != nil {
		t.Fatalf("TasksXLSX: %v", err)
	}
	rows := openRows(t, data, tasksSheet)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Key" || rows[1][0] != "TSK-00000001" {
		t.Errorf("unexpected first column: %v / %v", rows[0], rows[1])
	}
	if rows[1][2] != "Dana" || rows[2][2] != "u9" {
		t.Errorf("assignee names = %q, %q", rows[1][2], rows[2][2])
	}
	if rows[1][5] != "2026-03-01" {
		t.Errorf("due = %q", rows[1][5])
	}
}

func TestTasksXLSXEmpty(t *testing.T) {
	data, err := TasksXLSX(nil, nil)
	if err != nil {
		t.Fatalf("TasksXLSX: %v", err)
	}
	if rows := openRows(t, data, tasksSheet); len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestPerformanceXLSX(t *testing.T) {
	report := domain.PerformanceReport{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		Rows: []domain.PerformanceMetrics{
			{UserName: "Dana", Role: domain.RoleTeamMember, Total: 3, Done: 2, CompletionRate: 2.0 / 3.0, AvgCompletionHours: 5.256},
		},
	}
	data, err := PerformanceXLSX(report)
	if err != nil {
		t.Fatalf("PerformanceXLSX: %v", err)
	}
	rows := openRows(t, data, performanceSheet)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "Dana" || rows[1][8] != "66.67" || rows[1][9] != "5.26" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[2][1] != "2026-01-01 to 2026-01-08" {
		t.Errorf("window row = %v", rows[2])
	}
}
