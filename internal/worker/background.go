// Package worker runs the jobs that live beside the HTTP server: event subscribers, the outgoing
// mail queue and the scheduled performance report.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/service"
)

const mailDrainTimeout = 10 * time.Second

// Background owns the started jobs so shutdown can stop them together.
type Background struct {
	reports *ReportScheduler
	mail    *MailQueue
	logger  *zap.Logger
}

// Start subscribes notifications to the dispatcher and starts reports when non-nil. mail is
// drained on Stop.
func Start(notifications *service.NotificationService, reports *ReportScheduler, mail *MailQueue, logger *zap.Logger) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifications != nil {
		notifications.RegisterHandlers()
		logger.Info("notification handlers registered")
	}
	if reports != nil {
		reports.Start()
	}
	return &Background{reports: reports, mail: mail, logger: logger}
}

// Stop waits for a running report job, then drains queued mail.
func (b *Background) Stop() {
	if b == nil {
		return
	}
	if b.reports != nil {
		b.reports.Stop()
		b.logger.Info("report scheduler stopped")
	}
	if b.mail != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mailDrainTimeout)
		defer cancel()
		if err := b.mail.Close(ctx); err != nil {
			b.logger.Warn("mail queue shutdown", zap.Error(err))
		}
	}
}
