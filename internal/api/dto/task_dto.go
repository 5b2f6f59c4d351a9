package dto

import (
	"time"

	"github.com/fieldops/taskboard/internal/domain"
)

// CreateTaskRequest payload.
type CreateTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	AssigneeID  string              `json:"assignee_id"`
	Priority    domain.TaskPriority `json:"priority"`
	DueAt       *time.Time          `json:"due_at"`
}

// UpdateTaskStatusRequest payload.
type UpdateTaskStatusRequest struct {
	Status  domain.TaskStatus `json:"status"`
	Comment string            `json:"comment"`
}

// UpdateTaskPriorityRequest payload.
type UpdateTaskPriorityRequest struct {
	Priority domain.TaskPriority `json:"priority"`
}

// ReassignTaskRequest payload.
type ReassignTaskRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// SuggestPriorityRequest payload.
type SuggestPriorityRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at"`
}

// TaskResponse is the public view of a task.
type TaskResponse struct {
	ID          string              `json:"id"`
	Key         string              `json:"key"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	AssigneeID  string              `json:"assignee_id"`
	CreatorID   string              `json:"creator_id"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueAt       *time.Time          `json:"due_at"`
	CompletedAt *time.Time          `json:"completed_at"`
	Overdue     bool                `json:"overdue"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskHistoryResponse is one audit entry.
type TaskHistoryResponse struct {
	ID          string                `json:"id"`
	ChangedByID string                `json:"changed_by_id"`
	ChangeType  domain.TaskChangeType `json:"change_type"`
	OldValue    map[string]any        `json:"old_value"`
	NewValue    map[string]any        `json:"new_value"`
	CreatedAt   time.Time             `json:"created_at"`
}

// ActivityResponse is one activity feed entry.
type ActivityResponse struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	ActorID   string                `json:"actor_id"`
	TaskID    *string               `json:"task_id"`
	Action    domain.ActivityAction `json:"action"`
	Message   string                `json:"message"`
	CreatedAt time.Time             `json:"created_at"`
}
