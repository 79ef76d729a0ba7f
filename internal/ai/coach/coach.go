// Package coach builds interview prompts and parses model replies over any ai.Generator.
package coach

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/ai"
	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/utils"
)

//go:embed feedback.md
var feedbackTemplate string

//go:embed question.md
var questionTemplate string

//go:embed assessment.md
var assessmentTemplate string

const (
	defaultMaxLogLength = 200
	defaultRole         = "candidate"
	// unparsedScore is assigned when the model answered with prose instead of JSON.
	unparsedScore = 5
)

var errEmptyFeedback = errors.New("reply has no feedback text")

// Coach implements ai.Coach.
type Coach struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Coach = (*Coach)(nil)

func New(generator ai.Generator, logger *zap.Logger, maxLogLength int) *Coach {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coach{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Coach) Feedback(ctx context.Context, req ai.FeedbackRequest) (*ai.Feedback, error) {
	prompt := render(feedbackTemplate, map[string]string{
		"ROLE":     orDefault(req.Role, defaultRole),
		"CATEGORY": req.Category,
		"QUESTION": req.Question,
		"RESPONSE": orDefault(req.Response, "(no response)"),
		"METRICS":  describeMetrics(req.Metrics),
	})

	raw, err := c.generate(ctx, "feedback", prompt)
	if err != nil {
		return nil, err
	}

	feedback, err := parseFeedback(raw)
	if errors.Is(err, errEmptyFeedback) {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}
	if err != nil {
		c.logger.Debug("feedback reply is not json, using raw text", zap.Error(err))
		return &ai.Feedback{Score: unparsedScore, Text: raw, Raw: raw}, nil
	}
	feedback.Raw = raw

	return feedback, nil
}

func (c *Coach) Question(ctx context.Context, req ai.QuestionRequest) (string, error) {
	conversation := "none"
	if len(req.Transcript) > 0 {
		var b strings.Builder
		for i, entry := range req.Transcript {
			fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, entry.Question, i+1, orDefault(entry.Response, "(no response)"))
		}
		conversation = strings.TrimSpace(b.String())
	}

	prompt := render(questionTemplate, map[string]string{
		"ROLE":         orDefault(req.Role, defaultRole),
		"CATEGORY":     req.Category,
		"NUMBER":       strconv.Itoa(req.Number),
		"QUOTA":        strconv.Itoa(req.Quota),
		"CONVERSATION": conversation,
	})

	raw, err := c.generate(ctx, "question", prompt)
	if err != nil {
		return "", err
	}

	return cleanQuestion(raw), nil
}

func (c *Coach) Assessment(ctx context.Context, req ai.AssessmentRequest) (string, error) {
	var b strings.Builder
	for i, entry := range req.Transcript {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\nFeedback: %s\n\n", i+1, entry.Question, i+1, entry.Response, entry.Feedback)
	}

	prompt := render(assessmentTemplate, map[string]string{
		"ROLE":       orDefault(req.Role, defaultRole),
		"CATEGORY":   req.Category,
		"TRANSCRIPT": strings.TrimSpace(b.String()),
	})

	return c.generate(ctx, "assessment", prompt)
}

func (c *Coach) generate(ctx context.Context, kind, prompt string) (string, error) {
	if c.generator == nil {
		return "", errors.New("coach has no generator")
	}

	c.logger.Debug("generate content request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("generate %s: empty response", kind)
	}

	c.logger.Debug("generate content response",
		zap.String("kind", kind),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return raw, nil
}

// render fills placeholders in a single pass; substituted text is never rescanned,
// so placeholders typed by the candidate stay literal.
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}

func describeMetrics(m *domain.SideMetrics) string {
	if m == nil {
		return "none"
	}

	var parts []string
	if m.Confidence != nil {
		parts = append(parts, fmt.Sprintf("- confidence: %.2f", *m.Confidence))
	}
	if m.Emotion != "" {
		parts = append(parts, "- emotion: "+m.Emotion)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "\n")
}

func parseFeedback(raw string) (*ai.Feedback, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse feedback: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = unparsedScore
	}

	text := coerceString(data["feedback"])
	if text == "" {
		return nil, errEmptyFeedback
	}

	return &ai.Feedback{
		Score:     score,
		Quality:   coerceString(data["quality"]),
		Text:      text,
		Challenge: coerceString(data["challenge"]),
	}, nil
}

var listMarker = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s+`)

// cleanQuestion strips quotes and list markers models like to add.
func cleanQuestion(raw string) string {
	q := strings.TrimSpace(raw)
	if idx := strings.Index(q, "\n"); idx != -1 {
		q = strings.TrimSpace(q[:idx])
	}
	q = listMarker.ReplaceAllString(q, "")
	q = strings.TrimPrefix(q, "Question:")
	q = strings.Trim(strings.TrimSpace(q), `"`)
	return strings.TrimSpace(q)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
