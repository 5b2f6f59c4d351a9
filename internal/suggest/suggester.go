// Package suggest proposes a priority for a new task. An Ollama-compatible chat endpoint is asked
// first; a keyword and due-date heuristic answers when the model is unset, slow or incoherent.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/domain"
)

const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// Input describes the task being prioritised.
type Input struct {
	Title       string
	Description string
	DueAt       *time.Time
}

// Suggestion is a proposed priority with a short reason.
type Suggestion struct {
	Priority domain.TaskPriority `json:"priority"`
	Reason   string              `json:"reason"`
	Source   string              `json:"source"`
}

// Suggester proposes task priorities.
type Suggester struct {
	baseURL string
	model   string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a suggester. An empty BaseURL leaves only the heuristic.
func New(cfg config.SuggesterConfig, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
		logger:  logger,
		now:     time.Now,
	}
}

// Suggest returns a priority for in. It never fails: model errors fall back to the heuristic.
func (s *Suggester) Suggest(ctx context.Context, in Input) Suggestion {
	fallback := Heuristic(in, s.now())
	if s.baseURL == "" {
		return fallback
	}
	if err := ctx.Err(); err != nil {
		return fallback
	}

	suggestion, err := s.askModel(ctx, in)
	if err != nil {
		s.logger.Warn("priority model unavailable, using heuristic", zap.Error(err))
		return fallback
	}
	return suggestion
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

const systemPrompt = `You triage field-operations tasks. Reply with JSON only: ` +
	`{"priority":"LOW|MEDIUM|HIGH|CRITICAL","reason":"<one sentence>"}.`

func (s *Suggester) askModel(ctx context.Context, in Input) (Suggestion, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Suggestion{}, context.DeadlineExceeded
	}

	agent := fiber.Post(s.baseURL + "/api/chat")
	agent.JSON(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describe(in, s.now())},
		},
		Stream: false,
		Format: "json",
	})
	agent.Timeout(timeout)

	var resp chatResponse
	code, body, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return Suggestion{}, errors.Join(errs...)
	}
	if code != fiber.StatusOK {
		return Suggestion{}, fmt.Errorf("model status %d: %s", code, truncate(string(body), 200))
	}
	return parseReply(resp.Message.Content)
}

func parseReply(content string) (Suggestion, error) {
	var reply struct {
		Priority string `json:"priority"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return Suggestion{}, fmt.Errorf("decode model reply: %w", err)
	}
	priority := domain.TaskPriority(strings.ToUpper(strings.TrimSpace(reply.Priority)))
	if !priority.Valid() {
		return Suggestion{}, fmt.Errorf("model returned unknown priority %q", reply.Priority)
	}
	return Suggestion{Priority: priority, Reason: strings.TrimSpace(reply.Reason), Source: SourceModel}, nil
}

func describe(in Input, now time.Time) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(in.Title)
	if in.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(in.Description)
	}
	if in.DueAt != nil {
		fmt.Fprintf(&b, "\nDue: %s (now is %s)", in.DueAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
