package events

import (
	"time"

	"github.com/fieldops/taskboard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated         EventType = "task_created"
	EventTaskStatusChanged   EventType = "task_status_changed"
	EventTaskPriorityChanged EventType = "task_priority_changed"
	EventTaskAssigned        EventType = "task_assigned"
	EventPlannerChanged      EventType = "planner_event_changed"
)

// Event represents a domain event emitted by services. SubjectID is the task or planner event id.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Key        string              `json:"key"`
	Title      string              `json:"title"`
	AssigneeID string              `json:"assignee_id"`
	Priority   domain.TaskPriority `json:"priority"`
	DueAt      *time.Time          `json:"due_at,omitempty"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	Key       string            `json:"key"`
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
	Comment   string            `json:"comment,omitempty"`
}

// TaskPriorityChangedPayload payload.
type TaskPriorityChangedPayload struct {
	Key         string              `json:"key"`
	OldPriority domain.TaskPriority `json:"old_priority"`
	NewPriority domain.TaskPriority `json:"new_priority"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	Key                string `json:"key"`
	Title              string `json:"title"`
	PreviousAssigneeID string `json:"previous_assignee_id,omitempty"`
	AssigneeID         string `json:"assignee_id"`
}

// PlannerChangedPayload payload.
type PlannerChangedPayload struct {
	Action domain.ActivityAction `json:"action"`
	UserID string                `json:"user_id"`
	Title  string                `json:"title"`
}
