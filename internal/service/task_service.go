package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/export"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/suggest"
	"github.com/fieldops/taskboard/internal/visibility"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

const exportRowLimit = 5000

// TaskService coordinates task workflows.
type TaskService struct {
	tasks      repository.TaskRepository
	history    repository.TaskHistoryRepository
	users      repository.UserRepository
	activity   *ActivityService
	scopes     *ScopeService
	suggester  *suggest.Suggester
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	TaskRepo    repository.TaskRepository
	HistoryRepo repository.TaskHistoryRepository
	UserRepo    repository.UserRepository
	Activity    *ActivityService
	Scopes      *ScopeService
	Suggester   *suggest.Suggester
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TaskCreateInput describes task creation payload. An empty AssigneeID assigns the creator.
type TaskCreateInput struct {
	Title       string
	Description string
	AssigneeID  string
	Priority    domain.TaskPriority
	DueAt       *time.Time
}

// TaskListFilter describes listing filters.
type TaskListFilter struct {
	AssigneeID *string
	Statuses   []domain.TaskStatus
	Priorities []domain.TaskPriority
	SearchTerm *string
	DueFrom    *time.Time
	DueTo      *time.Time
	Limit      int
	Offset     int
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		activity:   deps.Activity,
		scopes:     deps.Scopes,
		suggester:  deps.Suggester,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTask creates a task for a user the caller can see.
func (s *TaskService) CreateTask(ctx context.Context, sess *session.Session, input TaskCreateInput) (*domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	assigneeID := strings.TrimSpace(input.AssigneeID)
	if assigneeID == "" {
		assigneeID = sess.User.ID
	}

	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignable(ctx, scope, assigneeID); err != nil {
		return nil, err
	}

	task := &domain.Task{
		Key:         generateTaskKey(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		AssigneeID:  assigneeID,
		CreatorID:   sess.User.ID,
		Status:      domain.TaskStatusTodo,
		Priority:    input.Priority,
		DueAt:       input.DueAt,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, &domain.ActivityLog{
		UserID:  task.AssigneeID,
		ActorID: sess.User.ID,
		TaskID:  &task.ID,
		Action:  domain.ActivityTaskCreated,
		Message: fmt.Sprintf("%s created %s: %s", sess.User.Name, task.Key, task.Title),
	})
	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventTaskCreated,
		SubjectID: task.ID,
		ActorID:   sess.User.ID,
		Payload: events.TaskCreatedPayload{
			Key:        task.Key,
			Title:      task.Title,
			AssigneeID: task.AssigneeID,
			Priority:   task.Priority,
			DueAt:      task.DueAt,
		},
	})
	if task.AssigneeID != sess.User.ID {
		publish(ctx, s.dispatcher, events.Event{
			Type:      events.EventTaskAssigned,
			SubjectID: task.ID,
			ActorID:   sess.User.ID,
			Payload:   events.TaskAssignedPayload{Key: task.Key, Title: task.Title, AssigneeID: task.AssigneeID},
		})
	}
	return task, nil
}

// GetTask returns a task the caller can see. Invisible tasks read as missing.
func (s *TaskService) GetTask(ctx context.Context, sess *session.Session, id string) (*domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	return s.visibleTask(ctx, scope, id)
}

// ListTasks lists tasks owned by users visible to the caller.
func (s *TaskService) ListTasks(ctx context.Context, sess *session.Session, filter TaskListFilter) ([]domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return s.listScoped(ctx, scope, filter)
}

func (s *TaskService) listScoped(ctx context.Context, scope visibility.Scope, filter TaskListFilter) ([]domain.Task, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": st})
		}
	}
	for _, pr := range filter.Priorities {
		if !pr.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": pr})
		}
	}
	ids := narrowTo(scope.UserIDs(), filter.AssigneeID)
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}

	tasks, err := s.tasks.List(ctx, repository.TaskFilter{
		AssigneeIDs: ids,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		DueFrom:     filter.DueFrom,
		DueTo:       filter.DueTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	return visibility.Filter(tasks, scope), nil
}

// UpdateStatus moves a task through its lifecycle.
func (s *TaskService) UpdateStatus(ctx context.Context, sess *session.Session, id string, next domain.TaskStatus, comment string) (*domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	task, err := s.visibleTask(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if task.Status == next {
		return task, nil
	}
	if !isValidTransition(task.Status, next) {
		return nil, apperrors.NewConflict("status transition not allowed", map[string]any{
			"from": task.Status,
			"to":   next,
		})
	}

	old := task.Status
	task.Status = next
	if next == domain.TaskStatusDone {
		now := s.now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, task.ID, sess.User.ID, domain.ChangeTypeStatus,
		map[string]any{"status": old},
		map[string]any{"status": next, "comment": strings.TrimSpace(comment)})
	s.activity.Record(ctx, &domain.ActivityLog{
		UserID:  task.AssigneeID,
		ActorID: sess.User.ID,
		TaskID:  &task.ID,
		Action:  domain.ActivityTaskStatus,
		Message: fmt.Sprintf("%s moved %s from %s to %s", sess.User.Name, task.Key, old, next),
	})
	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventTaskStatusChanged,
		SubjectID: task.ID,
		ActorID:   sess.User.ID,
		Payload: events.TaskStatusChangedPayload{
			Key:       task.Key,
			OldStatus: old,
			NewStatus: next,
			Comment:   strings.TrimSpace(comment),
		},
	})
	return task, nil
}

// UpdatePriority changes a task's priority.
func (s *TaskService) UpdatePriority(ctx context.Context, sess *session.Session, id string, priority domain.TaskPriority) (*domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	task, err := s.visibleTask(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if task.Priority == priority {
		return task, nil
	}

	old := task.Priority
	task.Priority = priority
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, task.ID, sess.User.ID, domain.ChangeTypePriority,
		map[string]any{"priority": old},
		map[string]any{"priority": priority})
	s.activity.Record(ctx, &domain.ActivityLog{
		UserID:  task.AssigneeID,
		ActorID: sess.User.ID,
		TaskID:  &task.ID,
		Action:  domain.ActivityTaskPriority,
		Message: fmt.Sprintf("%s set %s priority to %s", sess.User.Name, task.Key, priority),
	})
	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventTaskPriorityChanged,
		SubjectID: task.ID,
		ActorID:   sess.User.ID,
		Payload:   events.TaskPriorityChangedPayload{Key: task.Key, OldPriority: old, NewPriority: priority},
	})
	return task, nil
}

// Reassign hands a task to another user. Both the task and the new assignee must be visible.
func (s *TaskService) Reassign(ctx context.Context, sess *session.Session, id, assigneeID string) (*domain.Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("assignee_id required", nil)
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	task, err := s.visibleTask(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID == assigneeID {
		return task, nil
	}
	if err := s.checkAssignable(ctx, scope, assigneeID); err != nil {
		return nil, err
	}

	previous := task.AssigneeID
	task.AssigneeID = assigneeID
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, task.ID, sess.User.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": previous},
		map[string]any{"assignee_id": assigneeID})
	for _, owner := range []string{assigneeID, previous} {
		s.activity.Record(ctx, &domain.ActivityLog{
			UserID:  owner,
			ActorID: sess.User.ID,
			TaskID:  &task.ID,
			Action:  domain.ActivityTaskReassigned,
			Message: fmt.Sprintf("%s reassigned %s", sess.User.Name, task.Key),
		})
	}
	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventTaskAssigned,
		SubjectID: task.ID,
		ActorID:   sess.User.ID,
		Payload: events.TaskAssignedPayload{
			Key:                task.Key,
			Title:              task.Title,
			PreviousAssigneeID: previous,
			AssigneeID:         assigneeID,
		},
	})
	return task, nil
}

// ListHistory returns audit entries of a visible task.
func (s *TaskService) ListHistory(ctx context.Context, sess *session.Session, id string, limit, offset int) ([]domain.TaskHistory, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleTask(ctx, scope, id); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.history.ListByTask(ctx, id, limit, offset)
}

// ExportTasks renders the caller's visible tasks as a workbook.
func (s *TaskService) ExportTasks(ctx context.Context, sess *session.Session, filter TaskListFilter) ([]byte, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, roster, err := s.scopes.ResolveWithRoster(ctx, sess)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = exportRowLimit, 0
	tasks, err := s.listScoped(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(roster))
	for _, u := range roster {
		names[u.ID] = u.Name
	}
	return export.TasksXLSX(tasks, names)
}

// SuggestPriority proposes a priority for a task that has not been created yet.
func (s *TaskService) SuggestPriority(ctx context.Context, input suggest.Input) (suggest.Suggestion, error) {
	if strings.TrimSpace(input.Title) == "" {
		return suggest.Suggestion{}, apperrors.NewValidationError("title required", nil)
	}
	if s.suggester == nil {
		return suggest.Heuristic(input, s.now()), nil
	}
	return s.suggester.Suggest(ctx, input), nil
}

func (s *TaskService) visibleTask(ctx context.Context, scope visibility.Scope, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "task", map[string]any{"id": id})
	}
	if !scope.Allows(task.OwnerID()) {
		return nil, apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return task, nil
}

func (s *TaskService) checkAssignable(ctx context.Context, scope visibility.Scope, userID string) error {
	if !scope.Allows(userID) {
		return apperrors.NewForbidden("assignee not visible to caller")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("assignee not found", map[string]any{"assignee_id": userID})
		}
		return err
	}
	if !user.Active {
		return apperrors.NewValidationError("assignee inactive", map[string]any{"assignee_id": userID})
	}
	return nil
}

func (s *TaskService) recordHistory(ctx context.Context, taskID, actorID string, change domain.TaskChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TaskHistory{
		TaskID:      taskID,
		ChangedByID: actorID,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("task history write failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

var allowedTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusTodo:       {domain.TaskStatusInProgress, domain.TaskStatusBlocked},
	domain.TaskStatusInProgress: {domain.TaskStatusBlocked, domain.TaskStatusDone, domain.TaskStatusTodo},
	domain.TaskStatusBlocked:    {domain.TaskStatusInProgress, domain.TaskStatusTodo},
	domain.TaskStatusDone:       {domain.TaskStatusInProgress},
}

func isValidTransition(current, next domain.TaskStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
