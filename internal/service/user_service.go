package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// UserCreateInput describes a new roster entry.
type UserCreateInput struct {
	Name      string
	Email     string
	Password  string
	Role      domain.Role
	ManagerID *string
}

// UserUpdateInput carries optional changes. ClearManager detaches the user from any manager.
type UserUpdateInput struct {
	Name         *string
	Email        *string
	Password     *string
	Role         *domain.Role
	ManagerID    *string
	ClearManager bool
	Active       *bool
}

// UserService manages the roster.
type UserService struct {
	users      repository.UserRepository
	sessions   session.Store
	scopes     *ScopeService
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, sessions session.Store, scopes *ScopeService, bcryptCost int, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, sessions: sessions, scopes: scopes, bcryptCost: bcryptCost, logger: logger}
}

// ListVisibleUsers returns the roster entries visible to the caller.
func (s *UserService) ListVisibleUsers(ctx context.Context, sess *session.Session) ([]domain.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	_, visible, err := s.scopes.ResolveWithRoster(ctx, sess)
	if err != nil {
		return nil, err
	}
	return visible, nil
}

// GetUser returns one visible user.
func (s *UserService) GetUser(ctx context.Context, sess *session.Session, id string) (*domain.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(id) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "user", map[string]any{"id": id})
	}
	return user, nil
}

// CreateUser adds a roster entry. Admin only.
func (s *UserService) CreateUser(ctx context.Context, sess *session.Session, input UserCreateInput) (*domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	roster, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	managerID := trimmedOrNil(input.ManagerID)
	if managerID != nil && findUser(roster, *managerID) == nil {
		return nil, apperrors.NewValidationError("manager not found", map[string]any{"manager_id": *managerID})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		ManagerID:    managerID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)), zap.String("by", sess.User.ID))
	return user, nil
}

// UpdateUser edits a roster entry. Admin only. Role, manager, activation and password changes
// revoke the user's sessions.
func (s *UserService) UpdateUser(ctx context.Context, sess *session.Session, id string, input UserUpdateInput) (*domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	roster, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	current := findUser(roster, id)
	if current == nil {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	user := *current
	revoke := false

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name required", nil)
		}
		user.Name = name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if input.Role != nil && *input.Role != user.Role {
		if !input.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *input.Role})
		}
		if id == sess.User.ID && user.Role == domain.RoleAdmin {
			return nil, apperrors.NewConflict("admins cannot demote themselves", nil)
		}
		user.Role = *input.Role
		revoke = true
	}
	switch {
	case input.ClearManager:
		user.ManagerID = nil
		revoke = true
	case trimmedOrNil(input.ManagerID) != nil:
		managerID := *trimmedOrNil(input.ManagerID)
		if findUser(roster, managerID) == nil {
			return nil, apperrors.NewValidationError("manager not found", map[string]any{"manager_id": managerID})
		}
		if createsCycle(roster, id, managerID) {
			return nil, apperrors.NewConflict("manager assignment creates a reporting cycle", map[string]any{
				"user_id":    id,
				"manager_id": managerID,
			})
		}
		user.ManagerID = &managerID
		revoke = true
	}
	if input.Active != nil && *input.Active != user.Active {
		if id == sess.User.ID && !*input.Active {
			return nil, apperrors.NewConflict("admins cannot deactivate themselves", nil)
		}
		user.Active = *input.Active
		revoke = true
	}
	if input.Password != nil {
		if err := auth.ValidatePassword(*input.Password); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		revoke = true
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return nil, apperrors.NotFoundOr(err, "user", map[string]any{"id": id})
	}
	if revoke && id != sess.User.ID {
		if err := s.sessions.DeleteForUser(ctx, id); err != nil {
			s.logger.Warn("session revocation failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return &user, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != exceptID:
		return apperrors.NewConflict("email already registered", map[string]any{"email": email})
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return err
	}
	return nil
}

func requireAdmin(sess *session.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if sess.User.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	return nil
}

// createsCycle reports whether making managerID the manager of userID closes a loop.
func createsCycle(roster []domain.User, userID, managerID string) bool {
	managers := make(map[string]string, len(roster))
	for _, u := range roster {
		if u.ManagerID != nil {
			managers[u.ID] = *u.ManagerID
		}
	}
	seen := map[string]struct{}{}
	for cur := managerID; cur != ""; cur = managers[cur] {
		if cur == userID {
			return true
		}
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
	}
	return false
}

func findUser(roster []domain.User, id string) *domain.User {
	for i := range roster {
		if roster[i].ID == id {
			return &roster[i]
		}
	}
	return nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
