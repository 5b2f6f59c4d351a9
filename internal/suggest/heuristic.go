package suggest

import (
	"strings"
	"time"

	"github.com/fieldops/taskboard/internal/domain"
)

var (
	criticalWords = []string{"outage", "down", "safety", "injury", "leak", "fire", "emergency", "critical"}
	highWords     = []string{"urgent", "asap", "blocked", "broken", "customer", "deadline", "failure"}
	lowWords      = []string{"someday", "nice to have", "cleanup", "tidy", "optional", "when possible"}
)

var rank = map[domain.TaskPriority]int{
	domain.TaskPriorityLow:      0,
	domain.TaskPriorityMedium:   1,
	domain.TaskPriorityHigh:     2,
	domain.TaskPriorityCritical: 3,
}

// Heuristic scores a task from keywords and how close it is to its due date.
func Heuristic(in Input, now time.Time) Suggestion {
	text := strings.ToLower(in.Title + " " + in.Description)
	priority := domain.TaskPriorityMedium
	reason := "no urgency signals"

	switch {
	case containsAny(text, criticalWords):
		priority, reason = domain.TaskPriorityCritical, "mentions an outage or safety issue"
	case containsAny(text, highWords):
		priority, reason = domain.TaskPriorityHigh, "mentions urgency"
	case containsAny(text, lowWords):
		priority, reason = domain.TaskPriorityLow, "described as optional"
	}

	if in.DueAt != nil {
		left := in.DueAt.Sub(now)
		switch {
		case left < 0:
			priority, reason = raise(priority, domain.TaskPriorityCritical, reason, "already overdue")
		case left <= 24*time.Hour:
			priority, reason = raise(priority, domain.TaskPriorityHigh, reason, "due within a day")
		case left <= 72*time.Hour:
			priority, reason = raise(priority, domain.TaskPriorityMedium, reason, "due within three days")
		}
	}
	return Suggestion{Priority: priority, Reason: reason, Source: SourceHeuristic}
}

func raise(current, floor domain.TaskPriority, reason, why string) (domain.TaskPriority, string) {
	if rank[floor] > rank[current] {
		return floor, why
	}
	return current, reason
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
