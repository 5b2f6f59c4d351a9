package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/taskboard/internal/api/dto"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/service"
)

// ActivityHandler exposes the activity feed.
type ActivityHandler struct {
	service *service.ActivityService
}

// NewActivityHandler constructs handler.
func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: activityService}
}

// List GET /activity.
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	query := service.ActivityQuery{
		UserID: optionalQuery(c, "user_id"),
		TaskID: optionalQuery(c, "task_id"),
		From:   parseTime(c.Query("from")),
		To:     parseTime(c.Query("to")),
	}
	for _, a := range splitQuery(c, "action") {
		query.Actions = append(query.Actions, domain.ActivityAction(strings.ToUpper(a)))
	}
	query.Limit, query.Offset = pageParams(c)

	logs, err := h.service.List(c.UserContext(), sess, query)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.ActivityResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			ActorID:   l.ActorID,
			TaskID:    l.TaskID,
			Action:    l.Action,
			Message:   l.Message,
			CreatedAt: l.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
