package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/interview"
	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/metrics"
)

type startRequest struct {
	Category string `json:"category"`
	Role     string `json:"role"`
}

type submitRequest struct {
	Response string         `json:"response"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

type audioSubmitResponse struct {
	*interview.SubmitResult
	Transcript string `json:"transcript"`
}

type statsResponse struct {
	metrics.Snapshot
	LiveSessions int         `json:"live_sessions"`
	Mode         domain.Mode `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.service.Categories(),
		"mode":       s.service.Mode(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Snapshot:     s.metrics.Snapshot(),
		LiveSessions: s.service.Live(),
		Mode:         s.service.Mode(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	res, err := s.service.Start(r.Context(), req.Category, req.Role)
	if err != nil {
		fail(w, r, err)
		return
	}

	AddLogField(r.Context(), logger.FieldSession, res.SessionID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.service.End(chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), logger.FieldSession, id)

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	side, err := domain.DecodeSideMetrics(req.Metrics)
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	res, err := s.service.Submit(r.Context(), id, req.Response, side)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSubmitAudio(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		fail(w, r, errSpeechDisabled)
		return
	}

	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), logger.FieldSession, id)

	// Fail fast before paying for a transcription.
	if _, err := s.service.CurrentQuestion(id); err != nil {
		fail(w, r, err)
		return
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBody))
	if err != nil {
		fail(w, r, fmt.Errorf("%w: reading audio: %w", errBadRequest, err))
		return
	}
	if len(audio) == 0 {
		fail(w, r, fmt.Errorf("%w: empty audio body", errBadRequest))
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		s.logger.Error("transcription failed", zap.String(logger.FieldSession, id), zap.Error(err))
		fail(w, r, fmt.Errorf("%w: %w", errSpeechProvider, err))
		return
	}

	res, err := s.service.Submit(r.Context(), id, text, nil)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audioSubmitResponse{SubmitResult: res, Transcript: text})
}

func (s *Server) handleQuestionAudio(w http.ResponseWriter, r *http.Request) {
	if s.synthesizer == nil {
		fail(w, r, errSpeechDisabled)
		return
	}

	question, err := s.service.CurrentQuestion(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}

	audio, err := s.synthesizer.Synthesize(r.Context(), question)
	if err != nil {
		s.logger.Error("speech synthesis failed", zap.Error(err))
		fail(w, r, fmt.Errorf("%w: %w", errSpeechProvider, err))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
