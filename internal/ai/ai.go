// Package ai defines the generation collaborators used by dynamic interviews.
package ai

import (
	"context"

	"github.com/spigell/prepmate/internal/domain"
)

// Generator turns a prompt into text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Feedback is a model evaluation of one response.
type Feedback struct {
	Score     float64
	Quality   string
	Text      string
	Challenge string
	Raw       string
}

// FeedbackRequest carries the context for evaluating a response.
type FeedbackRequest struct {
	Role     string
	Category string
	Question string
	Response string
	Metrics  *domain.SideMetrics
}

// QuestionRequest carries the context for generating the next question.
type QuestionRequest struct {
	Role       string
	Category   string
	Transcript []domain.Entry
	Number     int
	Quota      int
}

// AssessmentRequest carries a finished transcript for a final evaluation.
type AssessmentRequest struct {
	Role       string
	Category   string
	Transcript []domain.Entry
}

// Coach produces interview content with a language model.
type Coach interface {
	Feedback(ctx context.Context, req FeedbackRequest) (*Feedback, error)
	Question(ctx context.Context, req QuestionRequest) (string, error)
	Assessment(ctx context.Context, req AssessmentRequest) (string, error)
}
