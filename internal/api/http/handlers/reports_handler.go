package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/taskboard/internal/api/dto"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/export"
	"github.com/fieldops/taskboard/internal/service"
)

// ReportsHandler exposes performance reports.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// Performance GET /reports/performance.
func (h *ReportsHandler) Performance(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	from, to := reportWindow(c)
	report, err := h.service.Performance(c.UserContext(), sess, from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reportResponse(report)})
}

// PerformanceExport GET /reports/performance/export.
func (h *ReportsHandler) PerformanceExport(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	from, to := reportWindow(c)
	data, report, err := h.service.PerformanceExport(c.UserContext(), sess, from, to)
	if err != nil {
		return err
	}
	name := "performance-" + report.From.Format("20060102") + "-" + report.To.Format("20060102") + ".xlsx"
	return sendAttachment(c, name, export.ContentTypeXLSX, data)
}

func reportWindow(c *fiber.Ctx) (time.Time, time.Time) {
	var from, to time.Time
	if t := parseTime(c.Query("from")); t != nil {
		from = *t
	}
	if t := parseTime(c.Query("to")); t != nil {
		to = *t
	}
	return from, to
}

func reportResponse(report *domain.PerformanceReport) dto.PerformanceReportResponse {
	rows := make([]dto.PerformanceRow, 0, len(report.Rows))
	for _, m := range report.Rows {
		rows = append(rows, dto.PerformanceRow{
			UserID:             m.UserID,
			UserName:           m.UserName,
			Role:               m.Role,
			Total:              m.Total,
			Todo:               m.Todo,
			InProgress:         m.InProgress,
			Blocked:            m.Blocked,
			Done:               m.Done,
			Overdue:            m.Overdue,
			CompletionRate:     m.CompletionRate,
			AvgCompletionHours: m.AvgCompletionHours,
		})
	}
	return dto.PerformanceReportResponse{
		From:        report.From,
		To:          report.To,
		GeneratedAt: report.GeneratedAt,
		Rows:        rows,
	}
}
