package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/cache"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/observability"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

// ScopeService resolves the visibility scope of a session.
type ScopeService struct {
	users   repository.UserRepository
	cache   cache.ScopeCache
	policy  *visibility.Policy
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewScopeService constructs the service. A nil cache disables caching.
func NewScopeService(users repository.UserRepository, scopeCache cache.ScopeCache, policy *visibility.Policy, metrics *observability.Metrics, logger *zap.Logger) *ScopeService {
	if scopeCache == nil {
		scopeCache = cache.NewRedisScopeCache(nil, "", 0)
	}
	if policy == nil {
		policy = visibility.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{users: users, cache: scopeCache, policy: policy, metrics: metrics, logger: logger}
}

// Policy returns the role policy in force.
func (s *ScopeService) Policy() *visibility.Policy { return s.policy }

// Resolve returns the caller's scope, from cache when the roster has not changed.
func (s *ScopeService) Resolve(ctx context.Context, sess *session.Session) (visibility.Scope, error) {
	if sess == nil || sess.User == nil {
		return visibility.Scope{}, apperrors.NewUnauthorized("authentication required")
	}
	current := sess.User

	version, err := s.users.RosterVersion(ctx)
	if err != nil {
		return visibility.Scope{}, err
	}
	ids, ok, err := s.cache.Get(ctx, current.ID, version)
	if err != nil {
		s.logger.Warn("scope cache read failed", zap.String("user_id", current.ID), zap.Error(err))
	}
	if ok {
		s.metrics.RecordScopeResolve("cache")
		return s.policy.ScopeFromIDs(current.ID, current.Role, ids), nil
	}

	roster, err := s.users.List(ctx)
	if err != nil {
		return visibility.Scope{}, err
	}
	scope := s.policy.Scope(rosterEntry(roster, current), roster)
	s.metrics.RecordScopeResolve("roster")

	if err := s.cache.Set(ctx, current.ID, version, scope.UserIDs()); err != nil {
		s.logger.Warn("scope cache write failed", zap.String("user_id", current.ID), zap.Error(err))
	}
	return scope, nil
}

// ResolveWithRoster resolves the scope and also returns the visible roster entries.
func (s *ScopeService) ResolveWithRoster(ctx context.Context, sess *session.Session) (visibility.Scope, []domain.User, error) {
	if sess == nil || sess.User == nil {
		return visibility.Scope{}, nil, apperrors.NewUnauthorized("authentication required")
	}
	roster, err := s.users.List(ctx)
	if err != nil {
		return visibility.Scope{}, nil, err
	}
	scope := s.policy.Scope(rosterEntry(roster, sess.User), roster)
	s.metrics.RecordScopeResolve("roster")
	return scope, visibility.FilterUsers(roster, scope), nil
}

// rosterEntry prefers the roster's copy of current so the manager chain matches the snapshot.
func rosterEntry(roster []domain.User, current *domain.User) *domain.User {
	for i := range roster {
		if roster[i].ID == current.ID {
			return &roster[i]
		}
	}
	return current
}
