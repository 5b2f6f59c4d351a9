package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/domain"
)

func TestHeuristic(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	tests := []struct {
		name string
		in   Input
		want domain.TaskPriority
	}{
		{"plain", Input{Title: "Update roster sheet"}, domain.TaskPriorityMedium},
		{"outage", Input{Title: "Compressor down at site 4"}, domain.TaskPriorityCritical},
		{"urgent in description", Input{Title: "Call vendor", Description: "ASAP please"}, domain.TaskPriorityHigh},
		{"optional", Input{Title: "Cleanup old folders"}, domain.TaskPriorityLow},
		{"optional but due tomorrow", Input{Title: "Cleanup old folders", DueAt: at(20 * time.Hour)}, domain.TaskPriorityHigh},
		{"overdue", Input{Title: "Submit timesheet", DueAt: at(-time.Hour)}, domain.TaskPriorityCritical},
		{"due in two days", Input{Title: "Tidy van", DueAt: at(48 * time.Hour)}, domain.TaskPriorityMedium},
		{"due far out", Input{Title: "Tidy van", DueAt: at(30 * 24 * time.Hour)}, domain.TaskPriorityLow},
		{"critical not lowered by due date", Input{Title: "Gas leak", DueAt: at(72 * time.Hour)}, domain.TaskPriorityCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Heuristic(tc.in, now)
			if got.Priority != tc.want {
				t.Errorf("priority = %s, want %s (%s)", got.Priority, tc.want, got.Reason)
			}
			if got.Source != SourceHeuristic {
				t.Errorf("source = %s", got.Source)
			}
		})
	}
}

func TestSuggestWithoutModelUsesHeuristic(t *testing.T) {
	s := New(config.SuggesterConfig{}, nil)
	got := s.Suggest(context.Background(), Input{Title: "Site outage"})
	if got.Source != SourceHeuristic || got.Priority != domain.TaskPriorityCritical {
		t.Fatalf("got %+v", got)
	}
}

func TestSuggestUsesModelReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stream {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: `{"priority":"low","reason":"routine"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	s := New(config.SuggesterConfig{BaseURL: srv.URL, Model: "test", TimeoutSeconds: 5}, nil)
	got := s.Suggest(context.Background(), Input{Title: "Site outage"})
	if got.Source != SourceModel || got.Priority != domain.TaskPriorityLow || got.Reason != "routine" {
		t.Fatalf("got %+v", got)
	}
}

func TestSuggestFallsBackOnBadModelReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: `{"priority":"EXTREME"}`}})
	}))
	defer srv.Close()

	s := New(config.SuggesterConfig{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	got := s.Suggest(context.Background(), Input{Title: "Urgent call"})
	if got.Source != SourceHeuristic || got.Priority != domain.TaskPriorityHigh {
		t.Fatalf("got %+v", got)
	}
}

func TestParseReply(t *testing.T) {
	if _, err := parseReply("not json"); err == nil {
		t.Error("expected decode error")
	}
	got, err := parseReply(` {"priority":" critical ","reason":" pump failure "} `)
	if err != nil {
		t.Fatal(err)
	}
	if got.Priority != domain.TaskPriorityCritical || got.Reason != "pump failure" {
		t.Errorf("got %+v", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "h"},
		{"日本語", 4, "日"},
		{"日本語", 6, "日本"},
		{"日本語", 2, ""},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.n)
		if got != tc.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
