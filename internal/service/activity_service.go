package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/visibility"
)

// ActivityQuery filters the activity feed.
type ActivityQuery struct {
	UserID  *string
	TaskID  *string
	Actions []domain.ActivityAction
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// ActivityService records and lists the team activity feed.
type ActivityService struct {
	logs   repository.ActivityLogRepository
	scopes *ScopeService
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(logs repository.ActivityLogRepository, scopes *ScopeService, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{logs: logs, scopes: scopes, logger: logger}
}

// Record appends an entry. Write failures are logged and swallowed.
func (s *ActivityService) Record(ctx context.Context, entry *domain.ActivityLog) {
	if s == nil || entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Warn("activity log write failed",
			zap.String("user_id", entry.UserID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

// List returns the entries of users visible to the caller, newest first.
func (s *ActivityService) List(ctx context.Context, sess *session.Session, query ActivityQuery) ([]domain.ActivityLog, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	ids := narrowTo(scope.UserIDs(), query.UserID)
	if len(ids) == 0 {
		return []domain.ActivityLog{}, nil
	}

	limit, offset := normalizePage(query.Limit, query.Offset)
	logs, err := s.logs.List(ctx, repository.ActivityFilter{
		UserIDs: ids,
		TaskID:  query.TaskID,
		Actions: query.Actions,
		From:    query.From,
		To:      query.To,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	return visibility.Filter(logs, scope), nil
}
