package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/ai"
	"github.com/spigell/prepmate/internal/ai/coach"
	"github.com/spigell/prepmate/internal/ai/gemini"
	"github.com/spigell/prepmate/internal/ai/openai"
	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/interview"
	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/metrics"
	"github.com/spigell/prepmate/internal/questionbank"
	"github.com/spigell/prepmate/internal/secrets"
	"github.com/spigell/prepmate/internal/speech"
	"github.com/spigell/prepmate/internal/storage"
	"github.com/spigell/prepmate/internal/storage/file"
	"github.com/spigell/prepmate/internal/storage/sqlite"
)

const (
	storageFile   = "file"
	storageSQLite = "sqlite"
	storageNone   = "none"

	providerGemini = "gemini"
	providerOpenAI = "openai"
)

// components is everything a command needs to run interviews.
type components struct {
	service     *interview.Service
	store       storage.Store
	metrics     *metrics.Metrics
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
}

func (c *components) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// provider groups what one AI backend can do. Speech fields stay nil when the
// backend lacks the capability.
type provider struct {
	name         string
	model        string
	generator    ai.Generator
	transcriber  speech.Transcriber
	synthesizer  speech.Synthesizer
	maxLogLength int
}

func buildComponents(ctx context.Context, cfg *Config, log *zap.Logger) (*components, error) {
	bank, err := loadBank(cfg.Interview)
	if err != nil {
		return nil, err
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	mode, err := domain.ParseMode(string(cfg.Interview.Mode))
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	c := &components{store: store, metrics: m}

	var interviewCoach ai.Coach
	p, err := newProvider(ctx, cfg.AI, log)
	switch {
	case err != nil && mode == domain.ModeDynamic:
		return nil, fmt.Errorf("dynamic mode needs an ai provider: %w", err)
	case err != nil:
		log.Info("ai provider is not configured, speech is disabled", zap.String("reason", err.Error()))
	default:
		log.Debug("ai provider ready",
			zap.String(logger.FieldProvider, p.name),
			zap.String(logger.FieldModel, p.model),
			zap.Bool("speech_to_text", p.transcriber != nil),
			zap.Bool("text_to_speech", p.synthesizer != nil),
		)
		c.transcriber = p.transcriber
		c.synthesizer = p.synthesizer
		if mode == domain.ModeDynamic {
			interviewCoach = coach.New(p.generator, log, p.maxLogLength)
		}
	}

	sessionLog := log.Named("sessions")
	repo := interview.NewMemoryRepository(cfg.Interview.MaxSessions, cfg.Interview.SessionTTL, func(id string) {
		sessionLog.Debug("session dropped from memory", zap.String(logger.FieldSession, id))
	})

	svc, err := interview.New(interview.Config{
		Mode:              mode,
		Quota:             cfg.Interview.Quota,
		CategoryPolicy:    cfg.Interview.CategoryPolicy,
		DefaultCategory:   cfg.Interview.DefaultCategory,
		GenerationTimeout: cfg.Interview.GenerationTimeout,
	}, interview.Deps{
		Bank:     bank,
		Sessions: repo,
		Coach:    interviewCoach,
		Store:    store,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	c.service = svc

	return c, nil
}

func loadBank(cfg *InterviewConfig) (*questionbank.Bank, error) {
	path := strings.TrimSpace(cfg.QuestionsFile)
	if path == "" {
		return questionbank.Default(), nil
	}
	return questionbank.Load(path)
}

// newStore returns nil for the "none" driver; saving then fails with
// interview.ErrPersistence.
func newStore(cfg *StorageConfig) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", storageFile:
		return file.New(cfg.Dir), nil
	case storageSQLite:
		return sqlite.New(cfg.DSN)
	case storageNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func newProvider(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*provider, error) {
	switch strings.TrimSpace(strings.ToLower(cfg.Provider)) {
	case "", providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, gemini.Options{
			APIKey:     apiKey,
			Model:      cfg.Gemini.Model,
			MaxRetries: cfg.Gemini.MaxRetries,
		}, log)
		if err != nil {
			return nil, err
		}

		return &provider{
			name:         providerGemini,
			model:        generator.Model(),
			generator:    generator,
			transcriber:  generator,
			maxLogLength: cfg.Gemini.MaxLogLength,
		}, nil

	case providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		client, err := openai.New(openai.Options{
			APIKey:     apiKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			MaxRetries: cfg.OpenAI.MaxRetries,
			TTSModel:   cfg.OpenAI.TTSModel,
			Voice:      cfg.OpenAI.Voice,
			STTModel:   cfg.OpenAI.STTModel,
		}, log)
		if err != nil {
			return nil, err
		}

		return &provider{
			name:         providerOpenAI,
			model:        client.Model(),
			generator:    client,
			transcriber:  client,
			synthesizer:  client,
			maxLogLength: cfg.OpenAI.MaxLogLength,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
