package domain

import "time"

// ActivityAction classifies an activity log entry.
type ActivityAction string

const (
	ActivityTaskCreated    ActivityAction = "TASK_CREATED"
	ActivityTaskStatus     ActivityAction = "TASK_STATUS_CHANGED"
	ActivityTaskPriority   ActivityAction = "TASK_PRIORITY_CHANGED"
	ActivityTaskReassigned ActivityAction = "TASK_REASSIGNED"
	ActivityPlannerCreated ActivityAction = "PLANNER_EVENT_CREATED"
	ActivityPlannerUpdated ActivityAction = "PLANNER_EVENT_UPDATED"
	ActivityPlannerDeleted ActivityAction = "PLANNER_EVENT_DELETED"
	ActivityLogin          ActivityAction = "LOGIN"
)

// ActivityLog records something a user did or that happened to their work.
type ActivityLog struct {
	ID        string
	UserID    string
	ActorID   string
	TaskID    *string
	Action    ActivityAction
	Message   string
	CreatedAt time.Time
}

// OwnerID returns the user the entry belongs to.
func (l ActivityLog) OwnerID() string { return l.UserID }
