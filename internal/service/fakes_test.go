package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/notify"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
)

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]domain.User
	version int
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = fmt.Sprintf("u%d", len(f.users)+100)
	}
	f.users[user.ID] = *user
	f.version++
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.users[user.ID] = *user
	f.version++
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) List(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) RosterVersion(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%d-%d", len(f.users), f.version), nil
}

type fakeTasks struct {
	tasks map[string]domain.Task
	seq   int
}

func newFakeTasks(tasks ...domain.Task) *fakeTasks {
	f := &fakeTasks{tasks: map[string]domain.Task{}}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	f.seq++
	task.ID = fmt.Sprintf("t%d", f.seq)
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTasks) Update(_ context.Context, task *domain.Task) error {
	if _, ok := f.tasks[task.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (f *fakeTasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	allowed := visibility.NewSet(filter.AssigneeIDs...)
	out := []domain.Task{}
	for _, t := range f.sorted() {
		if !allowed.Has(t.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) ListActiveInWindow(_ context.Context, ids []string, from, to time.Time) ([]domain.Task, error) {
	allowed := visibility.NewSet(ids...)
	out := []domain.Task{}
	for _, t := range f.sorted() {
		if allowed.Has(t.AssigneeID) && !t.CreatedAt.After(to) && (t.CompletedAt == nil || !t.CompletedAt.Before(from)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) sorted() []domain.Task {
	out := make([]domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsStatus(list []domain.TaskStatus, s domain.TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeHistory struct{ entries []domain.TaskHistory }

func (f *fakeHistory) Create(_ context.Context, h *domain.TaskHistory) error {
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByTask(_ context.Context, taskID string, _, _ int) ([]domain.TaskHistory, error) {
	out := []domain.TaskHistory{}
	for _, h := range f.entries {
		if h.TaskID == taskID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeActivity struct{ entries []domain.ActivityLog }

func (f *fakeActivity) Create(_ context.Context, entry *domain.ActivityLog) error {
	entry.ID = fmt.Sprintf("a%d", len(f.entries)+1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActivity) List(_ context.Context, filter repository.ActivityFilter) ([]domain.ActivityLog, error) {
	allowed := visibility.NewSet(filter.UserIDs...)
	out := []domain.ActivityLog{}
	for _, e := range f.entries {
		if allowed.Has(e.UserID) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePlanner struct {
	events map[string]domain.PlannerEvent
	seq    int
}

func newFakePlanner(evts ...domain.PlannerEvent) *fakePlanner {
	f := &fakePlanner{events: map[string]domain.PlannerEvent{}}
	for _, e := range evts {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakePlanner) Create(_ context.Context, e *domain.PlannerEvent) error {
	f.seq++
	e.ID = fmt.Sprintf("e%d", f.seq)
	f.events[e.ID] = *e
	return nil
}

func (f *fakePlanner) Update(_ context.Context, e *domain.PlannerEvent) error {
	if _, ok := f.events[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.events[e.ID] = *e
	return nil
}

func (f *fakePlanner) Delete(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.events, id)
	return nil
}

func (f *fakePlanner) GetByID(_ context.Context, id string) (*domain.PlannerEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (f *fakePlanner) List(_ context.Context, filter repository.PlannerFilter) ([]domain.PlannerEvent, error) {
	allowed := visibility.NewSet(filter.UserIDs...)
	out := []domain.PlannerEvent{}
	for _, e := range f.events {
		if allowed.Has(e.UserID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeSessions struct {
	sessions map[string]session.Session
	revoked  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]session.Session{}}
}

func (f *fakeSessions) Save(_ context.Context, s *session.Session) error {
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) Delete(_ context.Context, s *session.Session) error {
	delete(f.sessions, s.ID)
	return nil
}

func (f *fakeSessions) DeleteForUser(_ context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

type fakeScopeCache struct {
	entries map[string][]string
	gets    int
}

func (f *fakeScopeCache) Get(_ context.Context, userID, version string) ([]string, bool, error) {
	f.gets++
	ids, ok := f.entries[userID+"@"+version]
	return ids, ok, nil
}

func (f *fakeScopeCache) Set(_ context.Context, userID, version string, ids []string) error {
	if f.entries == nil {
		f.entries = map[string][]string{}
	}
	f.entries[userID+"@"+version] = ids
	return nil
}

type recordingDispatcher struct {
	events.Dispatcher
	published []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher(nil)}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) types() []events.EventType {
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

type fakeMailer struct{ sent []notify.Message }

func (f *fakeMailer) Send(msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func strPtr(s string) *string { return &s }

func member(id, name string, role domain.Role, manager string) domain.User {
	u := domain.User{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", Role: role, Active: true}
	if manager != "" {
		u.ManagerID = strPtr(manager)
	}
	return u
}

// org:
//
//	admin
//	└─ sup
//	   ├─ jun
//	   │  └─ tm2
//	   └─ tm1
//	sup2
//	└─ tm3
func orgUsers() []domain.User {
	return []domain.User{
		member("admin", "Ada", domain.RoleAdmin, ""),
		member("sup", "Sam", domain.RoleSupervisor, "admin"),
		member("jun", "Jo", domain.RoleJuniorSupervisor, "sup"),
		member("tm1", "Tia", domain.RoleTeamMember, "sup"),
		member("tm2", "Tom", domain.RoleTeamMember, "jun"),
		member("sup2", "Sue", domain.RoleSupervisor, ""),
		member("tm3", "Ted", domain.RoleTeamMember, "sup2"),
	}
}

func sessionFor(users *fakeUsers, id string) *session.Session {
	u, err := users.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return session.New(u, time.Hour, time.Now())
}

func hashed(password string) string {
	h, err := auth.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}

type harness struct {
	users      *fakeUsers
	tasks      *fakeTasks
	history    *fakeHistory
	activity   *fakeActivity
	planner    *fakePlanner
	sessions   *fakeSessions
	dispatcher *recordingDispatcher
	scopes     *ScopeService
	activitySv *ActivityService
	taskSv     *TaskService
	plannerSv  *PlannerService
	reportSv   *ReportService
	userSv     *UserService
}

func newHarness(tasks ...domain.Task) *harness {
	h := &harness{
		users:      newFakeUsers(orgUsers()...),
		tasks:      newFakeTasks(tasks...),
		history:    &fakeHistory{},
		activity:   &fakeActivity{},
		planner:    newFakePlanner(),
		sessions:   newFakeSessions(),
		dispatcher: newRecordingDispatcher(),
	}
	h.scopes = NewScopeService(h.users, nil, visibility.DefaultPolicy(), nil, nil)
	h.activitySv = NewActivityService(h.activity, h.scopes, nil)
	h.taskSv = NewTaskService(TaskDependencies{
		TaskRepo:    h.tasks,
		HistoryRepo: h.history,
		UserRepo:    h.users,
		Activity:    h.activitySv,
		Scopes:      h.scopes,
		Dispatcher:  h.dispatcher,
	})
	h.plannerSv = NewPlannerService(h.planner, h.activitySv, h.scopes, h.dispatcher)
	h.reportSv = NewReportService(h.tasks, h.scopes)
	h.userSv = NewUserService(h.users, h.sessions, h.scopes, bcrypt.MinCost, nil)
	return h
}

func (h *harness) session(id string) *session.Session { return sessionFor(h.users, id) }
