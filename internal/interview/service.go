// Package interview runs mock interview sessions: it hands out questions,
// scores responses and persists transcripts.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/ai"
	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/metrics"
	"github.com/spigell/prepmate/internal/questionbank"
	"github.com/spigell/prepmate/internal/storage"
)

const (
	DefaultQuota             = 5
	DefaultSessionTTL        = 2 * time.Hour
	DefaultMaxSessions       = 1000
	DefaultGenerationTimeout = 30 * time.Second
)

// CategoryPolicy decides what Start does with an unknown category.
type CategoryPolicy string

const (
	// PolicyReject fails Start with ErrInvalidCategory.
	PolicyReject CategoryPolicy = "reject"
	// PolicyDefault replaces the category with Config.DefaultCategory and
	// reports the correction in StartResult.
	PolicyDefault CategoryPolicy = "default"
)

type Config struct {
	Mode              domain.Mode
	Quota             int
	CategoryPolicy    CategoryPolicy
	DefaultCategory   string
	GenerationTimeout time.Duration
}

// Deps are the collaborators of a Service. Bank is required, Coach is
// required in dynamic mode, everything else is optional.
type Deps struct {
	Bank     *questionbank.Bank
	Sessions Repository
	Coach    ai.Coach
	Store    storage.Store
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Now   func() time.Time
	NewID func() string
}

type StartResult struct {
	SessionID         string `json:"session_id"`
	Question          string `json:"question"`
	Number            int    `json:"question_number"`
	Quota             int    `json:"quota"`
	Category          string `json:"category"`
	CategoryCorrected bool   `json:"category_corrected,omitempty"`
}

// SubmitResult carries either NextQuestion or FinalAssessment, never both.
type SubmitResult struct {
	SessionID       string  `json:"session_id"`
	Feedback        string  `json:"feedback"`
	Tier            string  `json:"tier,omitempty"`
	Score           float64 `json:"score,omitempty"`
	NextQuestion    string  `json:"next_question,omitempty"`
	FinalAssessment string  `json:"final_assessment,omitempty"`
	Number          int     `json:"question_number"`
	Complete        bool    `json:"complete"`
}

type Service struct {
	cfg      Config
	bank     *questionbank.Bank
	sessions Repository
	store    storage.Store
	strategy strategy
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Bank == nil {
		return nil, errors.New("question bank is required")
	}

	mode, err := domain.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode

	if cfg.Quota <= 0 {
		cfg.Quota = DefaultQuota
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}

	switch cfg.CategoryPolicy {
	case "":
		cfg.CategoryPolicy = PolicyReject
	case PolicyReject:
	case PolicyDefault:
		if !deps.Bank.Has(cfg.DefaultCategory) {
			return nil, fmt.Errorf("default category %q is not in the question bank", cfg.DefaultCategory)
		}
	default:
		return nil, fmt.Errorf("unknown category policy %q", cfg.CategoryPolicy)
	}

	log := logger.WithFields(deps.Logger, zap.String(logger.FieldMode, string(cfg.Mode)))

	s := &Service{
		cfg:      cfg,
		bank:     deps.Bank,
		sessions: deps.Sessions,
		store:    deps.Store,
		metrics:  deps.Metrics,
		logger:   log,
		now:      deps.Now,
		newID:    deps.NewID,
	}

	if s.sessions == nil {
		s.sessions = NewMemoryRepository(DefaultMaxSessions, DefaultSessionTTL, func(id string) {
			log.Debug("session dropped", zap.String(logger.FieldSession, id))
		})
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	switch cfg.Mode {
	case domain.ModeDynamic:
		if deps.Coach == nil {
			return nil, errors.New("dynamic mode requires a coach")
		}
		s.strategy = generativeStrategy{
			coach:   deps.Coach,
			timeout: cfg.GenerationTimeout,
			metrics: deps.Metrics,
			logger:  log,
		}
	default:
		s.strategy = keywordStrategy{bank: deps.Bank}
	}

	return s, nil
}

// Categories lists the categories a session can be started with.
func (s *Service) Categories() []string {
	return s.bank.Categories()
}

// Mode reports where questions and feedback come from.
func (s *Service) Mode() domain.Mode {
	return s.cfg.Mode
}

// Start creates a session and returns its first question.
func (s *Service) Start(ctx context.Context, category, role string) (*StartResult, error) {
	category = strings.TrimSpace(category)
	role = strings.TrimSpace(role)

	corrected := false
	if !s.bank.Has(category) {
		if s.cfg.CategoryPolicy != PolicyDefault {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
		}
		s.logger.Warn("unknown category replaced by default",
			zap.String("requested", category),
			zap.String(logger.FieldCategory, s.cfg.DefaultCategory),
		)
		category = s.cfg.DefaultCategory
		corrected = true
	}

	sess := newSession(s.newID(), category, role, s.cfg.Mode, s.cfg.Quota, s.now())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	first, err := s.strategy.first(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("first question: %w", err)
	}
	sess.begin(first, s.now())
	s.sessions.Put(sess)
	s.metrics.SessionStarted()

	logger.WithSession(s.logger, sess.id, category).Info("session started", zap.String("role", role))

	return &StartResult{
		SessionID:         sess.id,
		Question:          first.Text,
		Number:            sess.asked,
		Quota:             sess.quota,
		Category:          category,
		CategoryCorrected: corrected,
	}, nil
}

// Submit scores a response to the current question. It returns the next
// question, or the final assessment once the quota is reached.
func (s *Service) Submit(ctx context.Context, sessionID, response string, m *domain.SideMetrics) (*SubmitResult, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != domain.StateInProgress {
		return nil, fmt.Errorf("%w: session %s is %s", ErrInvalidSessionState, sessionID, sess.state)
	}

	eval := s.strategy.evaluate(ctx, sess, response, m)
	done := sess.record(domain.Entry{
		Timestamp: s.now(),
		Question:  sess.current.Text,
		Response:  response,
		Feedback:  eval.feedback,
		Tier:      string(eval.tier),
		Score:     eval.score,
		Metrics:   m,
	})
	s.metrics.ResponseScored()

	result := &SubmitResult{
		SessionID: sess.id,
		Feedback:  eval.feedback,
		Tier:      string(eval.tier),
		Score:     eval.score,
	}

	log := logger.WithSession(s.logger, sess.id, sess.category)
	if done {
		sess.complete(s.strategy.conclude(ctx, sess), s.now())
		s.metrics.SessionCompleted()
		log.Info("session complete", zap.Int("answered", len(sess.transcript)))

		result.FinalAssessment = sess.final
		result.Complete = true
	} else {
		next, idx := s.strategy.next(ctx, sess)
		sess.advance(next, idx)
		log.Debug("response scored", zap.String("tier", result.Tier), zap.Int("asked", sess.asked))

		result.NextQuestion = next.Text
	}
	result.Number = sess.asked

	s.sessions.Touch(sess)

	return result, nil
}

// Save persists the session. A complete session leaves the live table after a
// successful save; one in progress stays so the interview can continue.
func (s *Service) Save(ctx context.Context, sessionID string) (*domain.Record, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: no session store configured", ErrPersistence)
	}

	sess.mu.Lock()
	rec := sess.toRecord()
	sess.mu.Unlock()

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.metrics.SessionSaved()

	if rec.State == domain.StateComplete {
		s.sessions.Remove(sessionID)
	}

	logger.WithSession(s.logger, rec.SessionID, rec.Category).Info("session saved",
		zap.String("state", string(rec.State)),
		zap.Int("entries", len(rec.Transcript)),
	)

	return rec, nil
}

// Get returns a copy of a live session.
func (s *Service) Get(sessionID string) (*Snapshot, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// CurrentQuestion returns the question awaiting an answer.
func (s *Service) CurrentQuestion(sessionID string) (string, error) {
	snap, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}
	if snap.State != domain.StateInProgress {
		return "", fmt.Errorf("%w: session %s is %s", ErrInvalidSessionState, sessionID, snap.State)
	}
	return snap.CurrentQuestion, nil
}

// End drops a live session without saving it.
func (s *Service) End(sessionID string) error {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.Remove(sessionID)
	return nil
}

// Live returns the number of sessions held in memory.
func (s *Service) Live() int {
	return s.sessions.Len()
}
