package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/taskboard/internal/api/dto"
	"github.com/fieldops/taskboard/internal/service"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// PlannerHandler manages planner events.
type PlannerHandler struct {
	service *service.PlannerService
}

// NewPlannerHandler constructs handler.
func NewPlannerHandler(plannerService *service.PlannerService) *PlannerHandler {
	return &PlannerHandler{service: plannerService}
}

// Create POST /planner/events.
func (h *PlannerHandler) Create(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.CreatePlannerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event, err := h.service.CreateEvent(c.UserContext(), sess, service.PlannerInput{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		AllDay:      req.AllDay,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": plannerResponse(event)})
}

// List GET /planner/events.
func (h *PlannerHandler) List(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	list, err := h.service.ListEvents(c.UserContext(), sess, service.PlannerQuery{
		UserID: optionalQuery(c, "user_id"),
		From:   parseTime(c.Query("from")),
		To:     parseTime(c.Query("to")),
	})
	if err != nil {
		return err
	}
	items := make([]dto.PlannerEventResponse, 0, len(list))
	for i := range list {
		items = append(items, plannerResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PATCH /planner/events/:id.
func (h *PlannerHandler) Update(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePlannerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event, err := h.service.UpdateEvent(c.UserContext(), sess, c.Params("id"), service.PlannerUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		AllDay:      req.AllDay,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": plannerResponse(event)})
}

// Delete DELETE /planner/events/:id.
func (h *PlannerHandler) Delete(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteEvent(c.UserContext(), sess, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
