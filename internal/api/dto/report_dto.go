package dto

import (
	"time"

	"github.com/fieldops/taskboard/internal/domain"
)

// PerformanceRow is one user's metrics.
type PerformanceRow struct {
	UserID             string      `json:"user_id"`
	UserName           string      `json:"user_name"`
	Role               domain.Role `json:"role"`
	Total              int         `json:"total"`
	Todo               int         `json:"todo"`
	InProgress         int         `json:"in_progress"`
	Blocked            int         `json:"blocked"`
	Done               int         `json:"done"`
	Overdue            int         `json:"overdue"`
	CompletionRate     float64     `json:"completion_rate"`
	AvgCompletionHours float64     `json:"avg_completion_hours"`
}

// PerformanceReportResponse wraps a report window.
type PerformanceReportResponse struct {
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	GeneratedAt time.Time        `json:"generated_at"`
	Rows        []PerformanceRow `json:"rows"`
}
