package service

import (
	"context"
	"sort"
	"time"

	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/export"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

const (
	defaultReportWindow = 7 * 24 * time.Hour
	maxReportWindow     = 366 * 24 * time.Hour
)

// ReportService computes performance metrics over visible users.
type ReportService struct {
	tasks  repository.TaskRepository
	scopes *ScopeService
	now    func() time.Time
}

// NewReportService constructs the service.
func NewReportService(tasks repository.TaskRepository, scopes *ScopeService) *ReportService {
	return &ReportService{tasks: tasks, scopes: scopes, now: time.Now}
}

// Policy is the visibility policy reports are scoped by.
func (s *ReportService) Policy() *visibility.Policy { return s.scopes.Policy() }

// Performance returns one metrics row per visible user for [from, to]. Zero bounds default to the
// trailing week.
func (s *ReportService) Performance(ctx context.Context, sess *session.Session, from, to time.Time) (*domain.PerformanceReport, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	now := s.now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-defaultReportWindow)
	}
	if !from.Before(to) {
		return nil, apperrors.NewValidationError("from must be before to", nil)
	}
	if to.Sub(from) > maxReportWindow {
		return nil, apperrors.NewValidationError("report window too large", map[string]any{"max_days": 366})
	}

	scope, roster, err := s.scopes.ResolveWithRoster(ctx, sess)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListActiveInWindow(ctx, scope.UserIDs(), from, to)
	if err != nil {
		return nil, err
	}
	tasks = visibility.Filter(tasks, scope)

	return &domain.PerformanceReport{
		From:        from,
		To:          to,
		GeneratedAt: now,
		Rows:        ComputeMetrics(roster, tasks, from, to, now),
	}, nil
}

// PerformanceExport renders the performance report as a workbook.
func (s *ReportService) PerformanceExport(ctx context.Context, sess *session.Session, from, to time.Time) ([]byte, *domain.PerformanceReport, error) {
	report, err := s.Performance(ctx, sess, from, to)
	if err != nil {
		return nil, nil, err
	}
	data, err := export.PerformanceXLSX(*report)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return data, report, nil
}

// ComputeMetrics aggregates tasks per user. users fixes the row set; tasks owned by anyone else
// are ignored. Rows are ordered by name.
func ComputeMetrics(users []domain.User, tasks []domain.Task, from, to, now time.Time) []domain.PerformanceMetrics {
	rows := make(map[string]*domain.PerformanceMetrics, len(users))
	completionHours := make(map[string]float64, len(users))
	for _, u := range users {
		rows[u.ID] = &domain.PerformanceMetrics{UserID: u.ID, UserName: u.Name, Role: u.Role}
	}

	overdueAt := to
	if now.Before(overdueAt) {
		overdueAt = now
	}
	for _, t := range tasks {
		m, ok := rows[t.AssigneeID]
		if !ok {
			continue
		}
		m.Total++
		switch t.Status {
		case domain.TaskStatusTodo:
			m.Todo++
		case domain.TaskStatusInProgress:
			m.InProgress++
		case domain.TaskStatusBlocked:
			m.Blocked++
		case domain.TaskStatusDone:
			if t.CompletedAt != nil && !t.CompletedAt.Before(from) && !t.CompletedAt.After(to) {
				m.Done++
				completionHours[t.AssigneeID] += t.CompletedAt.Sub(t.CreatedAt).Hours()
			}
		}
		if t.Overdue(overdueAt) {
			m.Overdue++
		}
	}

	out := make([]domain.PerformanceMetrics, 0, len(rows))
	for id, m := range rows {
		if m.Total > 0 {
			m.CompletionRate = float64(m.Done) / float64(m.Total)
		}
		if m.Done > 0 {
			m.AvgCompletionHours = completionHours[id] / float64(m.Done)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
