package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/session"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func requireSession(sess *session.Session) error {
	if sess == nil || sess.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

// narrowTo restricts scoped ids to one requested user. An invisible user yields no ids.
func narrowTo(ids []string, userID *string) []string {
	if userID == nil || strings.TrimSpace(*userID) == "" {
		return ids
	}
	for _, id := range ids {
		if id == *userID {
			return []string{id}
		}
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func generateTaskKey() string {
	return "TSK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
