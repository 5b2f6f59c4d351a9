package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/suggest"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

func errCode(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func seedTasks() []domain.Task {
	now := time.Now()
	return []domain.Task{
		{ID: "a", Key: "TSK-A", Title: "A", AssigneeID: "tm1", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityLow, CreatedAt: now},
		{ID: "b", Key: "TSK-B", Title: "B", AssigneeID: "tm2", Status: domain.TaskStatusInProgress, Priority: domain.TaskPriorityHigh, CreatedAt: now},
		{ID: "c", Key: "TSK-C", Title: "C", AssigneeID: "tm3", Status: domain.TaskStatusDone, Priority: domain.TaskPriorityMedium, CreatedAt: now},
		{ID: "d", Key: "TSK-D", Title: "D", AssigneeID: "ghost", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityMedium, CreatedAt: now},
	}
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestListTasksIsScoped(t *testing.T) {
	h := newHarness(seedTasks()...)
	tests := []struct {
		caller string
		want   []string
	}{
		{"admin", []string{"a", "b", "c"}},
		{"sup", []string{"a", "b"}},
		{"sup2", []string{"c"}},
		{"jun", []string{}},
		{"tm2", []string{"b"}},
	}
	for _, tc := range tests {
		got, err := h.taskSv.ListTasks(context.Background(), h.session(tc.caller), TaskListFilter{})
		if err != nil {
			t.Fatalf("ListTasks(%s): %v", tc.caller, err)
		}
		if ids := taskIDs(got); !reflect.DeepEqual(ids, tc.want) {
			t.Errorf("ListTasks(%s) = %v, want %v", tc.caller, ids, tc.want)
		}
	}
}

func TestListTasksNarrowedToInvisibleAssignee(t *testing.T) {
	h := newHarness(seedTasks()...)
	got, err := h.taskSv.ListTasks(context.Background(), h.session("sup"), TaskListFilter{AssigneeID: strPtr("tm3")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want none", taskIDs(got))
	}
}

func TestGetTaskHidesInvisible(t *testing.T) {
	h := newHarness(seedTasks()...)
	if _, err := h.taskSv.GetTask(context.Background(), h.session("sup"), "c"); errCode(err) != "NOT_FOUND" {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if _, err := h.taskSv.GetTask(context.Background(), h.session("sup"), "missing"); errCode(err) != "NOT_FOUND" {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	task, err := h.taskSv.GetTask(context.Background(), h.session("sup"), "b")
	if err != nil || task.ID != "b" {
		t.Fatalf("GetTask = %v, %v", task, err)
	}
}

// uuidColumnTasks rejects ids the way a uuid column does.
type uuidColumnTasks struct{ *fakeTasks }

func (u uuidColumnTasks) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if strings.Count(id, "-") != 4 {
		return nil, &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}
	}
	return u.fakeTasks.GetByID(ctx, id)
}

func TestGetTaskMalformedIDIsNotFound(t *testing.T) {
	h := newHarness(seedTasks()...)
	tasks := NewTaskService(TaskDependencies{
		TaskRepo: uuidColumnTasks{h.tasks},
		UserRepo: h.users,
		Scopes:   h.scopes,
	})
	_, err := tasks.GetTask(context.Background(), h.session("sup"), "not-a-uuid")
	if errCode(err) != "NOT_FOUND" {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestCreateTask(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	task, err := h.taskSv.CreateTask(ctx, h.session("sup"), TaskCreateInput{Title: "  Check valves ", AssigneeID: "tm2"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Title != "Check valves" || task.Status != domain.TaskStatusTodo || task.Priority != domain.TaskPriorityMedium {
		t.Errorf("task = %+v", task)
	}
	if !strings.HasPrefix(task.Key, "TSK-") || len(task.Key) != 12 {
		t.Errorf("key = %q", task.Key)
	}
	if want := []events.EventType{events.EventTaskCreated, events.EventTaskAssigned}; !reflect.DeepEqual(h.dispatcher.types(), want) {
		t.Errorf("events = %v, want %v", h.dispatcher.types(), want)
	}
	if len(h.activity.entries) != 1 || h.activity.entries[0].UserID != "tm2" {
		t.Errorf("activity = %+v", h.activity.entries)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tests := []struct {
		name   string
		caller string
		input  TaskCreateInput
		code   string
	}{
		{"missing title", "sup", TaskCreateInput{Title: " "}, "VALIDATION_FAILED"},
		{"bad priority", "sup", TaskCreateInput{Title: "x", Priority: "URGENT"}, "VALIDATION_FAILED"},
		{"invisible assignee", "sup", TaskCreateInput{Title: "x", AssigneeID: "tm3"}, "FORBIDDEN"},
		{"team member for another", "tm1", TaskCreateInput{Title: "x", AssigneeID: "tm2"}, "FORBIDDEN"},
		{"junior supervisor for report", "jun", TaskCreateInput{Title: "x", AssigneeID: "tm2"}, "FORBIDDEN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.taskSv.CreateTask(ctx, h.session(tc.caller), tc.input)
			if errCode(err) != tc.code {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
		})
	}
}

func TestCreateTaskForSelfPublishesNoAssignment(t *testing.T) {
	h := newHarness()
	task, err := h.taskSv.CreateTask(context.Background(), h.session("tm1"), TaskCreateInput{Title: "Own work"})
	if err != nil {
		t.Fatal(err)
	}
	if task.AssigneeID != "tm1" {
		t.Errorf("assignee = %s", task.AssigneeID)
	}
	if want := []events.EventType{events.EventTaskCreated}; !reflect.DeepEqual(h.dispatcher.types(), want) {
		t.Errorf("events = %v", h.dispatcher.types())
	}
}

func TestCreateTaskRejectsInactiveAssignee(t *testing.T) {
	h := newHarness()
	u, _ := h.users.GetByID(context.Background(), "tm1")
	u.Active = false
	_ = h.users.Update(context.Background(), u)
	_, err := h.taskSv.CreateTask(context.Background(), h.session("sup"), TaskCreateInput{Title: "x", AssigneeID: "tm1"})
	if errCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.TaskStatus
		ok       bool
	}{
		{domain.TaskStatusTodo, domain.TaskStatusInProgress, true},
		{domain.TaskStatusTodo, domain.TaskStatusBlocked, true},
		{domain.TaskStatusTodo, domain.TaskStatusDone, false},
		{domain.TaskStatusInProgress, domain.TaskStatusDone, true},
		{domain.TaskStatusInProgress, domain.TaskStatusTodo, true},
		{domain.TaskStatusBlocked, domain.TaskStatusInProgress, true},
		{domain.TaskStatusBlocked, domain.TaskStatusDone, false},
		{domain.TaskStatusDone, domain.TaskStatusInProgress, true},
		{domain.TaskStatusDone, domain.TaskStatusTodo, false},
	}
	for _, tc := range tests {
		h := newHarness(domain.Task{ID: "x", Key: "TSK-X", AssigneeID: "tm1", Status: tc.from})
		_, err := h.taskSv.UpdateStatus(context.Background(), h.session("tm1"), "x", tc.to, "")
		if (err == nil) != tc.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%t", tc.from, tc.to, err, tc.ok)
		}
		if !tc.ok && errCode(err) != "CONFLICT" {
			t.Errorf("%s -> %s: code = %s", tc.from, tc.to, errCode(err))
		}
	}
}

func TestUpdateStatusDoneSetsCompletion(t *testing.T) {
	h := newHarness(domain.Task{ID: "x", Key: "TSK-X", AssigneeID: "tm1", Status: domain.TaskStatusInProgress})
	ctx := context.Background()

	task, err := h.taskSv.UpdateStatus(ctx, h.session("sup"), "x", domain.TaskStatusDone, "finished")
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if len(h.history.entries) != 1 || h.history.entries[0].ChangeType != domain.ChangeTypeStatus {
		t.Fatalf("history = %+v", h.history.entries)
	}

	task, err = h.taskSv.UpdateStatus(ctx, h.session("sup"), "x", domain.TaskStatusInProgress, "")
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt != nil {
		t.Fatal("completed_at not cleared on reopen")
	}
}

func TestUpdateStatusInvisibleTask(t *testing.T) {
	h := newHarness(seedTasks()...)
	_, err := h.taskSv.UpdateStatus(context.Background(), h.session("tm1"), "b", domain.TaskStatusDone, "")
	if errCode(err) != "NOT_FOUND" {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdatePriority(t *testing.T) {
	h := newHarness(seedTasks()...)
	task, err := h.taskSv.UpdatePriority(context.Background(), h.session("sup"), "a", domain.TaskPriorityCritical)
	if err != nil {
		t.Fatal(err)
	}
	if task.Priority != domain.TaskPriorityCritical {
		t.Errorf("priority = %s", task.Priority)
	}
	if _, err := h.taskSv.UpdatePriority(context.Background(), h.session("sup"), "a", "NOPE"); errCode(err) != "VALIDATION_FAILED" {
		t.Errorf("err = %v", err)
	}
}

func TestReassign(t *testing.T) {
	h := newHarness(seedTasks()...)
	ctx := context.Background()

	task, err := h.taskSv.Reassign(ctx, h.session("sup"), "a", "tm2")
	if err != nil {
		t.Fatal(err)
	}
	if task.AssigneeID != "tm2" {
		t.Fatalf("assignee = %s", task.AssigneeID)
	}
	if len(h.activity.entries) != 2 {
		t.Fatalf("activity entries = %d, want one per assignee", len(h.activity.entries))
	}
	last := h.dispatcher.published[len(h.dispatcher.published)-1]
	payload, ok := last.Payload.(events.TaskAssignedPayload)
	if last.Type != events.EventTaskAssigned || !ok || payload.PreviousAssigneeID != "tm1" {
		t.Fatalf("event = %+v", last)
	}

	if _, err := h.taskSv.Reassign(ctx, h.session("sup"), "a", "tm3"); errCode(err) != "FORBIDDEN" {
		t.Fatalf("reassign to invisible user: err = %v", err)
	}
	if _, err := h.taskSv.Reassign(ctx, h.session("sup"), "a", ""); errCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("empty assignee: err = %v", err)
	}
}

func TestListHistory(t *testing.T) {
	h := newHarness(seedTasks()...)
	ctx := context.Background()
	if _, err := h.taskSv.UpdatePriority(ctx, h.session("sup"), "a", domain.TaskPriorityHigh); err != nil {
		t.Fatal(err)
	}
	entries, err := h.taskSv.ListHistory(ctx, h.session("tm1"), "a", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].NewValue["priority"] != domain.TaskPriorityHigh {
		t.Fatalf("history = %+v", entries)
	}
	if _, err := h.taskSv.ListHistory(ctx, h.session("tm3"), "a", 0, 0); errCode(err) != "NOT_FOUND" {
		t.Fatalf("err = %v", err)
	}
}

func TestExportTasks(t *testing.T) {
	h := newHarness(seedTasks()...)
	data, err := h.taskSv.ExportTasks(context.Background(), h.session("sup"), TaskListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}
}

func TestSuggestPriorityWithoutModel(t *testing.T) {
	h := newHarness()
	got, err := h.taskSv.SuggestPriority(context.Background(), suggest.Input{Title: "Gas leak in bay 2"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Priority != domain.TaskPriorityCritical {
		t.Fatalf("got %+v", got)
	}
	if _, err := h.taskSv.SuggestPriority(context.Background(), suggest.Input{}); errCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("err = %v", err)
	}
}
