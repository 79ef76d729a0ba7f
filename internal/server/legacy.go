package server

import (
	"errors"
	"net/http"

	"github.com/spigell/prepmate/internal/interview"
)

// Routes kept for the browser client that predates /api/sessions.

const legacyDefaultType = "Technical"

type legacyStartRequest struct {
	Type string `json:"type"`
}

type legacySessionRequest struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

type legacySubmitResponse struct {
	Feedback        string `json:"feedback"`
	NextQuestion    string `json:"next_question,omitempty"`
	FinalAssessment string `json:"final_assessment,omitempty"`
	SessionID       string `json:"session_id"`
}

func (s *Server) handleLegacyStart(w http.ResponseWriter, r *http.Request) {
	var req legacyStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		legacyError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = legacyDefaultType
	}

	res, err := s.service.Start(r.Context(), req.Type, "")
	if errors.Is(err, interview.ErrInvalidCategory) {
		legacyError(w, r, http.StatusBadRequest, "Invalid interview type")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": res.SessionID,
		"question":   res.Question,
	})
}

func (s *Server) handleLegacySubmit(w http.ResponseWriter, r *http.Request) {
	var req legacySessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		legacyError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.service.Submit(r.Context(), req.SessionID, req.Response, nil)
	if err != nil {
		s.legacyFail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, legacySubmitResponse{
		Feedback:        res.Feedback,
		NextQuestion:    res.NextQuestion,
		FinalAssessment: res.FinalAssessment,
		SessionID:       res.SessionID,
	})
}

func (s *Server) handleLegacySave(w http.ResponseWriter, r *http.Request) {
	var req legacySessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		legacyError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := s.service.Save(r.Context(), req.SessionID)
	if err != nil {
		s.legacyFail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Interview " + rec.SessionID + " saved",
	})
}

func (s *Server) legacyFail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, interview.ErrSessionNotFound) {
		legacyError(w, r, http.StatusBadRequest, "No active interview session")
		return
	}
	fail(w, r, err)
}

func legacyError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	AddLogField(r.Context(), "error", msg)
	writeJSON(w, status, errorResponse{Error: msg})
}
