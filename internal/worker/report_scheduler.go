package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/export"
	"github.com/fieldops/taskboard/internal/notify"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/service"
	"github.com/fieldops/taskboard/internal/session"
)

// ReportScheduler emails the performance report of the users they can see to every active user
// whose role is not self-only under the visibility policy, on a cron schedule.
type ReportScheduler struct {
	cron    *cron.Cron
	users   repository.UserRepository
	reports *service.ReportService
	mailer  notify.Mailer
	window  time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportScheduler builds a scheduler; schedule uses the six-field (seconds) cron format.
func NewReportScheduler(schedule string, window time.Duration, users repository.UserRepository, reports *service.ReportService, mailer notify.Mailer, logger *zap.Logger) (*ReportScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportScheduler{
		cron:    cron.New(cron.WithSeconds()),
		users:   users,
		reports: reports,
		mailer:  mailer,
		window:  window,
		logger:  logger,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled report failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule.
func (s *ReportScheduler) Start() {
	s.cron.Start()
	s.logger.Info("report scheduler started")
}

// Stop halts the schedule and waits for a running job.
func (s *ReportScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce sends one round of reports. Each recipient gets a short-lived in-memory session so the
// report goes through the same visibility scope as an interactive request.
func (s *ReportScheduler) RunOnce(ctx context.Context) error {
	roster, err := s.users.List(ctx)
	if err != nil {
		return err
	}
	to := s.now()
	from := to.Add(-s.window)

	policy := s.reports.Policy()
	sent := 0
	for i := range roster {
		u := roster[i]
		if !u.Active || policy.SelfOnly(u.Role) || u.Email == "" {
			continue
		}
		sess := session.New(&u, time.Hour, to)
		report, err := s.reports.Performance(ctx, sess, from, to)
		if err != nil {
			s.logger.Warn("report build failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		data, err := export.PerformanceXLSX(*report)
		if err != nil {
			s.logger.Warn("report render failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		msg := notify.Message{
			To:      []string{u.Email},
			Subject: fmt.Sprintf("Team performance %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
			Text:    fmt.Sprintf("Hi %s,\n\nAttached is the performance report for %d team members.\n", u.Name, len(report.Rows)),
			Attachments: []notify.Attachment{{
				FileName:    "performance-" + to.Format("20060102") + ".xlsx",
				ContentType: export.ContentTypeXLSX,
				Content:     data,
			}},
		}
		if err := s.mailer.Send(msg); err != nil {
			s.logger.Warn("report email failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		sent++
	}
	s.logger.Info("scheduled reports sent", zap.Int("count", sent))
	return nil
}
