// Package export renders already-scoped records as spreadsheets. Callers pass filtered data;
// nothing here consults visibility.
package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/fieldops/taskboard/internal/domain"
)

// ContentTypeXLSX is the MIME type of the generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	tasksSheet       = "Tasks"
	performanceSheet = "Performance"
	dateLayout       = "2006-01-02"
	timeLayout       = "2006-01-02 15:04"
)

// TasksXLSX renders tasks, resolving assignee names through names when present.
func TasksXLSX(tasks []domain.Task, names map[string]string) ([]byte, error) {
	header := []string{"Key", "Title", "Assignee", "Status", "Priority", "Due", "Completed", "Created"}
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []any{
			t.Key,
			t.Title,
			nameOr(names, t.AssigneeID),
			string(t.Status),
			string(t.Priority),
			formatTime(t.DueAt, dateLayout),
			formatTime(t.CompletedAt, timeLayout),
			t.CreatedAt.Format(timeLayout),
		})
	}
	widths := []float64{16, 40, 24, 14, 12, 12, 18, 18}
	return writeWorkbook(tasksSheet, header, rows, widths)
}

// PerformanceXLSX renders a performance report.
func PerformanceXLSX(report domain.PerformanceReport) ([]byte, error) {
	header := []string{"User", "Role", "Total", "To Do", "In Progress", "Blocked", "Done", "Overdue", "Completion %", "Avg Hours To Done"}
	rows := make([][]any, 0, len(report.Rows)+1)
	for _, m := range report.Rows {
		rows = append(rows, []any{
			m.UserName,
			string(m.Role),
			m.Total,
			m.Todo,
			m.InProgress,
			m.Blocked,
			m.Done,
			m.Overdue,
			round2(m.CompletionRate * 100),
			round2(m.AvgCompletionHours),
		})
	}
	rows = append(rows, []any{"Window", report.From.Format(dateLayout) + " to " + report.To.Format(dateLayout)})
	widths := []float64{28, 20, 8, 8, 12, 10, 8, 10, 14, 18}
	return writeWorkbook(performanceSheet, header, rows, widths)
}

func writeWorkbook(sheet string, header []string, rows [][]any, widths []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, values := range rows {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	_ = f.SetCellStyle(sheet, "A1", last, style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
