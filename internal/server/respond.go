package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spigell/prepmate/internal/interview"
)

const (
	maxJSONBody  = 1 << 20
	maxAudioBody = 25 << 20
)

var (
	errBadRequest     = errors.New("bad request")
	errRateLimited    = errors.New("rate limit exceeded")
	errSpeechDisabled = errors.New("speech is not configured")
	errSpeechProvider = errors.New("speech provider failed")
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, interview.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrInvalidSessionState):
		return http.StatusConflict
	case errors.Is(err, errSpeechDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, errSpeechProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	AddLogField(r.Context(), "error", err.Error())
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
