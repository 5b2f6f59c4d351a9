package domain

import "time"

// PerformanceMetrics summarises one user's task throughput over a window.
type PerformanceMetrics struct {
	UserID             string
	UserName           string
	Role               Role
	Total              int
	Todo               int
	InProgress         int
	Blocked            int
	Done               int
	Overdue            int
	CompletionRate     float64
	AvgCompletionHours float64
}

// PerformanceReport bundles per-user metrics for a reporting window.
type PerformanceReport struct {
	From        time.Time
	To          time.Time
	GeneratedAt time.Time
	Rows        []PerformanceMetrics
}
