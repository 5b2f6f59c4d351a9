package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// PlannerInput describes a new calendar entry. An empty UserID books it for the caller.
type PlannerInput struct {
	UserID      string
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
}

// PlannerUpdateInput carries optional changes.
type PlannerUpdateInput struct {
	Title       *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	AllDay      *bool
}

// PlannerQuery filters calendar listings.
type PlannerQuery struct {
	UserID *string
	From   *time.Time
	To     *time.Time
}

// PlannerService manages planner events.
type PlannerService struct {
	events     repository.PlannerEventRepository
	activity   *ActivityService
	scopes     *ScopeService
	dispatcher events.Dispatcher
}

// NewPlannerService constructs the service.
func NewPlannerService(repo repository.PlannerEventRepository, activity *ActivityService, scopes *ScopeService, dispatcher events.Dispatcher) *PlannerService {
	return &PlannerService{events: repo, activity: activity, scopes: scopes, dispatcher: dispatcher}
}

// CreateEvent books an event for the caller or a user the caller can see.
func (s *PlannerService) CreateEvent(ctx context.Context, sess *session.Session, input PlannerInput) (*domain.PlannerEvent, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(input.UserID)
	if owner == "" {
		owner = sess.User.ID
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(owner) {
		return nil, apperrors.NewForbidden("cannot plan for this user")
	}

	event := &domain.PlannerEvent{
		UserID:      owner,
		CreatedByID: sess.User.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		AllDay:      input.AllDay,
	}
	normalizeAllDay(event)
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	s.recordChange(ctx, sess, event, domain.ActivityPlannerCreated)
	return event, nil
}

// ListEvents returns events of visible users overlapping the query window.
func (s *PlannerService) ListEvents(ctx context.Context, sess *session.Session, query PlannerQuery) ([]domain.PlannerEvent, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, apperrors.NewValidationError("to must not be before from", nil)
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	ids := narrowTo(scope.UserIDs(), query.UserID)
	if len(ids) == 0 {
		return []domain.PlannerEvent{}, nil
	}
	list, err := s.events.List(ctx, repository.PlannerFilter{UserIDs: ids, From: query.From, To: query.To})
	if err != nil {
		return nil, err
	}
	return visibility.Filter(list, scope), nil
}

// UpdateEvent edits a visible event.
func (s *PlannerService) UpdateEvent(ctx context.Context, sess *session.Session, id string, input PlannerUpdateInput) (*domain.PlannerEvent, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	event, err := s.visibleEvent(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		event.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}
	if input.StartsAt != nil {
		event.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = *input.EndsAt
	}
	if input.AllDay != nil {
		event.AllDay = *input.AllDay
	}
	normalizeAllDay(event)
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return nil, apperrors.NotFoundOr(err, "planner event", map[string]any{"id": id})
	}
	s.recordChange(ctx, sess, event, domain.ActivityPlannerUpdated)
	return event, nil
}

// DeleteEvent removes a visible event.
func (s *PlannerService) DeleteEvent(ctx context.Context, sess *session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	event, err := s.visibleEvent(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return apperrors.NotFoundOr(err, "planner event", map[string]any{"id": id})
	}
	s.recordChange(ctx, sess, event, domain.ActivityPlannerDeleted)
	return nil
}

func (s *PlannerService) visibleEvent(ctx context.Context, sess *session.Session, id string) (*domain.PlannerEvent, error) {
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "planner event", map[string]any{"id": id})
	}
	if !scope.Allows(event.OwnerID()) {
		return nil, apperrors.NewNotFound("planner event", map[string]any{"id": id})
	}
	return event, nil
}

func (s *PlannerService) recordChange(ctx context.Context, sess *session.Session, event *domain.PlannerEvent, action domain.ActivityAction) {
	verb := map[domain.ActivityAction]string{
		domain.ActivityPlannerCreated: "scheduled",
		domain.ActivityPlannerUpdated: "updated",
		domain.ActivityPlannerDeleted: "removed",
	}[action]
	s.activity.Record(ctx, &domain.ActivityLog{
		UserID:  event.UserID,
		ActorID: sess.User.ID,
		Action:  action,
		Message: fmt.Sprintf("%s %s %q", sess.User.Name, verb, event.Title),
	})
	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventPlannerChanged,
		SubjectID: event.ID,
		ActorID:   sess.User.ID,
		Payload:   events.PlannerChangedPayload{Action: action, UserID: event.UserID, Title: event.Title},
	})
}

// normalizeAllDay stretches all-day events to whole UTC days.
func normalizeAllDay(event *domain.PlannerEvent) {
	if !event.AllDay {
		return
	}
	start := event.StartsAt.UTC().Truncate(24 * time.Hour)
	end := event.EndsAt.UTC()
	if end.Before(start) {
		end = start
	}
	end = end.Truncate(24 * time.Hour).Add(24*time.Hour - time.Second)
	event.StartsAt, event.EndsAt = start, end
}

func validateEvent(event *domain.PlannerEvent) error {
	if event.Title == "" {
		return apperrors.NewValidationError("title required", nil)
	}
	if event.StartsAt.IsZero() || event.EndsAt.IsZero() {
		return apperrors.NewValidationError("starts_at and ends_at required", nil)
	}
	if event.EndsAt.Before(event.StartsAt) {
		return apperrors.NewValidationError("ends_at must not be before starts_at", nil)
	}
	return nil
}
