package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/taskboard/internal/api/dto"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/export"
	"github.com/fieldops/taskboard/internal/service"
	"github.com/fieldops/taskboard/internal/suggest"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// TasksHandler manages task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// CreateTask POST /tasks.
func (h *TasksHandler) CreateTask(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("title required", nil)
	}
	task, err := h.service.CreateTask(c.UserContext(), sess, service.TaskCreateInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Priority:    req.Priority,
		DueAt:       req.DueAt,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": taskResponse(task, time.Now())})
}

// ListTasks GET /tasks.
func (h *TasksHandler) ListTasks(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	tasks, err := h.service.ListTasks(c.UserContext(), sess, parseTaskFilter(c))
	if err != nil {
		return err
	}
	now := time.Now()
	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i], now))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTask GET /tasks/:id.
func (h *TasksHandler) GetTask(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	task, err := h.service.GetTask(c.UserContext(), sess, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task, time.Now())})
}

// UpdateStatus PATCH /tasks/:id/status.
func (h *TasksHandler) UpdateStatus(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTaskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.UpdateStatus(c.UserContext(), sess, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task, time.Now())})
}

// UpdatePriority PATCH /tasks/:id/priority.
func (h *TasksHandler) UpdatePriority(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTaskPriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.UpdatePriority(c.UserContext(), sess, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task, time.Now())})
}

// Reassign PATCH /tasks/:id/assignee.
func (h *TasksHandler) Reassign(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.ReassignTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.Reassign(c.UserContext(), sess, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task, time.Now())})
}

// History GET /tasks/:id/history.
func (h *TasksHandler) History(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	entries, err := h.service.ListHistory(c.UserContext(), sess, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TaskHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.TaskHistoryResponse{
			ID:          e.ID,
			ChangedByID: e.ChangedByID,
			ChangeType:  e.ChangeType,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Export GET /tasks/export.
func (h *TasksHandler) Export(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	data, err := h.service.ExportTasks(c.UserContext(), sess, parseTaskFilter(c))
	if err != nil {
		return err
	}
	return sendAttachment(c, "tasks-"+time.Now().Format("20060102")+".xlsx", export.ContentTypeXLSX, data)
}

// SuggestPriority POST /tasks/suggest-priority.
func (h *TasksHandler) SuggestPriority(c *fiber.Ctx) error {
	if _, err := currentSession(c); err != nil {
		return err
	}
	var req dto.SuggestPriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	suggestion, err := h.service.SuggestPriority(c.UserContext(), suggest.Input{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestion})
}

func parseTaskFilter(c *fiber.Ctx) service.TaskListFilter {
	filter := service.TaskListFilter{
		AssigneeID: optionalQuery(c, "assignee_id"),
		SearchTerm: optionalQuery(c, "q"),
		DueFrom:    parseTime(c.Query("due_from")),
		DueTo:      parseTime(c.Query("due_to")),
	}
	for _, s := range splitQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.ToUpper(s)))
	}
	for _, p := range splitQuery(c, "priority") {
		filter.Priorities = append(filter.Priorities, domain.TaskPriority(strings.ToUpper(p)))
	}
	filter.Limit, filter.Offset = pageParams(c)
	return filter
}
