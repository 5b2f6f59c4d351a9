package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/notify"
	"github.com/fieldops/taskboard/internal/repository"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	mailer     notify.Mailer
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, mailer notify.Mailer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTaskCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTaskStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTaskPriorityChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventPlannerChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTaskAssigned, n.logEvent)
	n.dispatcher.Subscribe(events.EventTaskAssigned, n.handleTaskAssigned)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTaskAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskAssignedPayload)
	if !ok || n.mailer == nil || n.users == nil {
		return nil
	}
	if payload.AssigneeID == event.ActorID {
		return nil
	}
	assignee, err := n.users.GetByID(ctx, payload.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", payload.AssigneeID, err)
	}
	if !assignee.Active || assignee.Email == "" {
		return nil
	}
	return n.mailer.Send(notify.Message{
		To:      []string{assignee.Email},
		Subject: fmt.Sprintf("[%s] assigned to you: %s", payload.Key, payload.Title),
		Text: fmt.Sprintf("Hi %s,\n\nTask %s \"%s\" has been assigned to you.\n",
			assignee.Name, payload.Key, payload.Title),
	})
}
