package interview

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/ai"
	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/metrics"
	"github.com/spigell/prepmate/internal/questionbank"
	"github.com/spigell/prepmate/internal/scoring"
)

const (
	// FallbackFeedback is returned when the model could not evaluate a response.
	FallbackFeedback = "I'm not sure that answer fully addresses the question. Could you think about it from another angle and try again?"

	fallbackQuestion = "Could you tell me about your background and experience as they relate to the %s role?"
	fallbackRole     = "candidate"

	minModelScore = 1
	maxModelScore = 10
)

// FallbackQuestion is asked when the model could not produce a question.
func FallbackQuestion(role string) string {
	if role = strings.TrimSpace(role); role == "" {
		role = fallbackRole
	}
	return fmt.Sprintf(fallbackQuestion, role)
}

type evaluation struct {
	feedback string
	tier     scoring.Tier
	score    float64
}

// strategy decides where questions, feedback and the final assessment come from.
// Callers hold the session lock.
type strategy interface {
	first(ctx context.Context, s *Session) (questionbank.Question, error)
	evaluate(ctx context.Context, s *Session, response string, m *domain.SideMetrics) evaluation
	next(ctx context.Context, s *Session) (questionbank.Question, int)
	conclude(ctx context.Context, s *Session) string
}

// keywordStrategy cycles through the bank and scores by keyword coverage.
type keywordStrategy struct {
	bank *questionbank.Bank
}

func (k keywordStrategy) first(_ context.Context, s *Session) (questionbank.Question, error) {
	return k.bank.Question(s.category, 0)
}

func (k keywordStrategy) evaluate(_ context.Context, s *Session, response string, _ *domain.SideMetrics) evaluation {
	res := scoring.Score(response, s.current)
	return evaluation{feedback: res.Feedback, tier: res.Tier}
}

func (k keywordStrategy) next(_ context.Context, s *Session) (questionbank.Question, int) {
	idx := (s.index + 1) % k.bank.Len(s.category)
	q, _ := k.bank.Question(s.category, idx)
	return q, idx
}

func (k keywordStrategy) conclude(_ context.Context, s *Session) string {
	return summarize(s.category, s.transcript)
}

// generativeStrategy asks a language model for everything and falls back to
// fixed text when the model fails or times out.
type generativeStrategy struct {
	coach   ai.Coach
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (g generativeStrategy) first(ctx context.Context, s *Session) (questionbank.Question, error) {
	return g.question(ctx, s), nil
}

func (g generativeStrategy) evaluate(ctx context.Context, s *Session, response string, m *domain.SideMetrics) evaluation {
	var fb *ai.Feedback
	err := g.call(ctx, s, "feedback", func(ctx context.Context) error {
		var err error
		fb, err = g.coach.Feedback(ctx, ai.FeedbackRequest{
			Role:     s.role,
			Category: s.category,
			Question: s.current.Text,
			Response: response,
			Metrics:  m,
		})
		return err
	})
	if err != nil {
		return evaluation{feedback: FallbackFeedback}
	}

	text := strings.TrimSpace(strings.TrimSpace(fb.Text) + " " + strings.TrimSpace(fb.Challenge))
	if text == "" {
		return evaluation{feedback: FallbackFeedback}
	}

	score := clampScore(fb.Score)
	return evaluation{
		feedback: text,
		score:    score,
		tier:     scoring.TierFor(score / 10),
	}
}

// clampScore keeps a model score on the 1-10 scale.
func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < minModelScore:
		return minModelScore
	case score > maxModelScore:
		return maxModelScore
	default:
		return score
	}
}

func (g generativeStrategy) next(ctx context.Context, s *Session) (questionbank.Question, int) {
	return g.question(ctx, s), s.index + 1
}

func (g generativeStrategy) conclude(ctx context.Context, s *Session) string {
	var out string
	err := g.call(ctx, s, "assessment", func(ctx context.Context) error {
		var err error
		out, err = g.coach.Assessment(ctx, ai.AssessmentRequest{
			Role:       s.role,
			Category:   s.category,
			Transcript: s.transcriptCopy(),
		})
		return err
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return summarize(s.category, s.transcript)
	}
	return strings.TrimSpace(out)
}

func (g generativeStrategy) question(ctx context.Context, s *Session) questionbank.Question {
	var text string
	err := g.call(ctx, s, "question", func(ctx context.Context) error {
		var err error
		text, err = g.coach.Question(ctx, ai.QuestionRequest{
			Role:       s.role,
			Category:   s.category,
			Transcript: s.transcriptCopy(),
			Number:     s.asked + 1,
			Quota:      s.quota,
		})
		return err
	})
	if err != nil || strings.TrimSpace(text) == "" {
		return questionbank.Question{Text: FallbackQuestion(s.role)}
	}
	return questionbank.Question{Text: strings.TrimSpace(text)}
}

// call runs fn with its own deadline. The caller's cancellation is not
// propagated so a submitted response always runs to completion.
func (g generativeStrategy) call(ctx context.Context, s *Session, kind string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	err := fn(ctx)
	g.metrics.GenerationCall(err == nil)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrGeneration, kind, err)
		g.logger.Warn("generation failed, using fallback",
			zap.String("session_id", s.id),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	return err
}

// summarize renders the static final assessment from the tiers in a transcript.
func summarize(category string, transcript []domain.Entry) string {
	counts := map[scoring.Tier]int{}
	for _, e := range transcript {
		if e.Tier != "" {
			counts[scoring.Tier(e.Tier)]++
		}
	}

	noun := "questions"
	if len(transcript) == 1 {
		noun = "question"
	}

	summary := fmt.Sprintf("Interview complete! You answered %d %s in %s: %d excellent, %d good, %d exploratory.",
		len(transcript), noun, category,
		counts[scoring.TierExcellent], counts[scoring.TierGood], counts[scoring.TierExploratory],
	)

	return summary + " " + encouragement(counts)
}

func encouragement(counts map[scoring.Tier]int) string {
	// Ties go to the better tier.
	best, bestCount := scoring.TierExploratory, 0
	for tier, n := range counts {
		if n > bestCount || (n == bestCount && tier.Rank() > best.Rank()) {
			best, bestCount = tier, n
		}
	}

	switch {
	case bestCount == 0:
		return "Keep practicing and review the feedback for each question."
	case best == scoring.TierExcellent:
		return "Outstanding work, you are well prepared for this topic."
	case best == scoring.TierGood:
		return "Solid performance. Review the points you missed and you will be ready."
	default:
		return "Keep practicing and focus on the key concepts suggested in the feedback."
	}
}
