package domain

import "time"

// TaskStatus enumerates lifecycle states for tasks.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskPriority enumerates task urgency.
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "LOW"
	TaskPriorityMedium   TaskPriority = "MEDIUM"
	TaskPriorityHigh     TaskPriority = "HIGH"
	TaskPriorityCritical TaskPriority = "CRITICAL"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone:
		return true
	}
	return false
}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return true
	}
	return false
}

// Task is a unit of work assigned to one user.
type Task struct {
	ID          string
	Key         string
	Title       string
	Description string
	AssigneeID  string
	CreatorID   string
	Status      TaskStatus
	Priority    TaskPriority
	DueAt       *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnerID returns the assignee, who owns the task for visibility purposes.
func (t Task) OwnerID() string { return t.AssigneeID }

// Overdue reports whether the task is past due and not done at the given instant.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != TaskStatusDone && t.DueAt != nil && now.After(*t.DueAt)
}
