// Package server exposes the interview service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/interview"
	"github.com/spigell/prepmate/internal/metrics"
	"github.com/spigell/prepmate/internal/speech"
)

const (
	DefaultAddr            = ":8000"
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateLimit       = 30
	DefaultRateWindow      = time.Minute
)

type Options struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	// RateLimit is the number of requests a client may make per RateWindow.
	// Zero or less disables limiting.
	RateLimit  int           `mapstructure:"rate-limit"`
	RateWindow time.Duration `mapstructure:"rate-window"`
}

// Deps are the collaborators of a Server. Service is required. Without a
// Transcriber or Synthesizer the audio routes answer 501.
type Deps struct {
	Service     *interview.Service
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	opts   Options

	service     *interview.Service
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func New(opts Options, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("interview service is required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		router:      chi.NewRouter(),
		opts:        opts,
		service:     deps.Service,
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		metrics:     deps.Metrics,
		logger:      log,
	}

	r := s.router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "prepmate")
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(RateLimitMiddleware(NewRateLimiter(opts.RateLimit, opts.RateWindow)))
		}

		r.Get("/categories", s.handleCategories)
		r.Get("/stats", s.handleStats)

		r.Post("/sessions", s.handleStart)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleEnd)
			r.Post("/responses", s.handleSubmit)
			r.Post("/audio", s.handleSubmitAudio)
			r.Get("/question/audio", s.handleQuestionAudio)
			r.Post("/save", s.handleSave)
		})

		r.Post("/start_interview", s.handleLegacyStart)
		r.Post("/submit_response", s.handleLegacySubmit)
		r.Post("/save_interview", s.handleLegacySave)
	})

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.opts.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
