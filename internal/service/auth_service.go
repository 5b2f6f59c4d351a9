package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// AuthService coordinates login, logout and password flows.
type AuthService struct {
	users      repository.UserRepository
	sessions   session.Store
	activity   *ActivityService
	tokenMgr   *auth.TokenManager
	bcryptCost int
	sessionTTL time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	SessionStore session.Store
	Activity     *ActivityService
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token   string
	Session *session.Session
	User    *domain.User
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionStore,
		activity:   deps.Activity,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name),
		bcryptCost: cfg.Auth.BcryptCost,
		sessionTTL: cfg.Auth.SessionTTL(),
		now:        time.Now,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates by email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewForbidden("account inactive")
	}

	sess := session.New(user, s.sessionTTL, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.NewUnavailable("session store unavailable", err)
	}
	token, err := s.tokenMgr.GenerateToken(sess)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.activity.Record(ctx, &domain.ActivityLog{
		UserID:  user.ID,
		ActorID: user.ID,
		Action:  domain.ActivityLogin,
		Message: user.Name + " signed in",
	})
	return &LoginResult{Token: token, Session: sess, User: user}, nil
}

// Logout destroys the session.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sess)
}

// Me returns the session's user.
func (s *AuthService) Me(_ context.Context, sess *session.Session) (*domain.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return sess.User, nil
}

// ChangePassword verifies the current password, stores the new hash and revokes every other
// session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, sess *session.Session, currentPassword, newPassword string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return apperrors.NotFoundOr(err, "user", nil)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("current password incorrect")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if err := s.sessions.DeleteForUser(ctx, user.ID); err != nil {
		return apperrors.NewUnavailable("session store unavailable", err)
	}
	return s.sessions.Save(ctx, sess)
}
