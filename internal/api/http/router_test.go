package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/taskboard/internal/api/http/handlers"
	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/observability"
	"github.com/fieldops/taskboard/internal/service"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
)

type rosterRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (r *rosterRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = "new-" + u.Email
	}
	r.users[u.ID] = *u
	return nil
}

func (r *rosterRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *rosterRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *rosterRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *rosterRepo) List(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *rosterRepo) RosterVersion(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Unix(int64(len(r.users)), 0).UTC().Format(time.RFC3339), nil
}

type nopSessions struct{}

func (nopSessions) Save(context.Context, *session.Session) error          { return nil }
func (nopSessions) Get(context.Context, string) (*session.Session, error) { return nil, session.ErrNotFound }
func (nopSessions) Delete(context.Context, *session.Session) error        { return nil }
func (nopSessions) DeleteForUser(context.Context, string) error           { return nil }

func managed(id string, role domain.Role, manager string) domain.User {
	u := domain.User{ID: id, Name: id, Email: id + "@example.com", Role: role, Active: true}
	if manager != "" {
		u.ManagerID = &manager
	}
	return u
}

// headerSession stands in for token auth: the X-User header names the caller.
func headerSession(repo *rosterRepo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-User")
		if id == "" {
			return c.Next()
		}
		user, err := repo.GetByID(c.UserContext(), id)
		if err != nil {
			return c.Next()
		}
		auth.WithSession(c, session.New(user, time.Hour, time.Now()))
		return c.Next()
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	repo := &rosterRepo{users: map[string]domain.User{}}
	for _, u := range []domain.User{
		managed("admin", domain.RoleAdmin, ""),
		managed("sup", domain.RoleSupervisor, "admin"),
		managed("jun", domain.RoleJuniorSupervisor, "sup"),
		managed("tm1", domain.RoleTeamMember, "jun"),
		managed("tm2", domain.RoleTeamMember, "other"),
		managed("other", domain.RoleSupervisor, ""),
	} {
		repo.users[u.ID] = u
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics("taskboard_test")
	scopes := service.NewScopeService(repo, nil, visibility.DefaultPolicy(), metrics, logger)
	users := service.NewUserService(repo, nopSessions{}, scopes, bcrypt.MinCost, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Auth:         handlers.NewAuthHandler(nil),
		Users:        handlers.NewUsersHandler(users),
		Tasks:        handlers.NewTasksHandler(nil),
		Activity:     handlers.NewActivityHandler(nil),
		Planner:      handlers.NewPlannerHandler(nil),
		Reports:      handlers.NewReportsHandler(nil),
		Metrics:      metrics,
		Authenticate: headerSession(repo),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func userIDs(t *testing.T, body map[string]any) []string {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("missing data array in %v", body)
	}
	ids := make([]string, 0, len(data))
	for _, item := range data {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	sort.Strings(ids)
	return ids
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestListUsersIsScopedByRole(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		user string
		want string
	}{
		{"admin", "admin,jun,other,sup,tm1,tm2"},
		{"sup", "jun,sup,tm1"},
		{"jun", "jun"},
		{"tm1", "tm1"},
		{"other", "other,tm2"},
	}
	for _, tc := range tests {
		status, body := do(t, app, "GET", "/users", tc.user, "")
		if status != fiber.StatusOK {
			t.Fatalf("%s: status %d", tc.user, status)
		}
		if got := strings.Join(userIDs(t, body), ","); got != tc.want {
			t.Errorf("%s sees %s, want %s", tc.user, got, tc.want)
		}
	}
}

func TestInvisibleUserReadsAsNotFound(t *testing.T) {
	app := newTestApp(t)
	status, body := do(t, app, "GET", "/users/tm2", "sup", "")
	if status != fiber.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/users", "/tasks", "/activity", "/planner/events", "/reports/performance", "/auth/me"} {
		status, body := do(t, app, "GET", path, "", "")
		if status != fiber.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
			t.Errorf("GET %s: status %d body %v", path, status, body)
		}
	}
}

func TestCreateUserIsAdminOnly(t *testing.T) {
	app := newTestApp(t)
	payload := `{"name":"New","email":"new@example.com","password":"longenough","role":"TEAM_MEMBER","manager_id":"sup"}`

	status, body := do(t, app, "POST", "/users", "sup", payload)
	if status != fiber.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("supervisor create: status %d body %v", status, body)
	}

	status, body = do(t, app, "POST", "/users", "admin", payload)
	if status != fiber.StatusCreated {
		t.Fatalf("admin create: status %d body %v", status, body)
	}

	status, body = do(t, app, "GET", "/users", "sup", "")
	if status != fiber.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	if got := strings.Join(userIDs(t, body), ","); got != "jun,new-new@example.com,sup,tm1" {
		t.Fatalf("supervisor sees %s after create", got)
	}
}

func TestValidationErrorsCarryDetails(t *testing.T) {
	app := newTestApp(t)
	status, body := do(t, app, "POST", "/users", "admin", `{"name":"X","email":"x@example.com","password":"longenough","role":"TEAM_MEMBER","manager_id":"ghost"}`)
	if status != fiber.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("status %d body %v", status, body)
	}
	details, _ := body["error"].(map[string]any)["details"].(map[string]any)
	if details["manager_id"] != "ghost" {
		t.Fatalf("details = %v", details)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	do(t, app, "GET", "/users", "admin", "")

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), "taskboard_test_") {
		t.Fatalf("status %d body %s", resp.StatusCode, raw)
	}
}

func TestRequestIDIsEchoedOnErrors(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	var body map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"]["request_id"] != "req-123" {
		t.Fatalf("error body = %v", body)
	}
}

func TestDeadlineExceededMapsToUnavailable(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/slow", func(c *fiber.Ctx) error {
		return fmt.Errorf("list tasks: %w", context.DeadlineExceeded)
	})
	status, body := do(t, app, "GET", "/slow", "", "")
	if status != fiber.StatusServiceUnavailable || errorCode(body) != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	app := fiber.New()
	metrics := observability.NewMetrics("taskboard_limit")
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterEdgeMiddlewares(app, config.AppConfig{CORSOrigins: "*", RateLimitPerMinute: 2})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	var resp *gohttp.Response
	for i := 0; i < 3; i++ {
		var err error
		resp, err = app.Test(httptest.NewRequest("GET", "/ping", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("third request status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("rate-limited response has no X-Request-ID")
	}
	if got := countByStatus(t, metrics, "taskboard_limit_http_requests_total", "429"); got != 1 {
		t.Fatalf("429 requests counted = %v, want 1", got)
	}
	if status, _ := do(t, app, "GET", "/health/live", "", ""); status == fiber.StatusTooManyRequests {
		t.Fatal("health probes must bypass the limiter")
	}
}

func countByStatus(t *testing.T, metrics *observability.Metrics, family, status string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == status {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}
