// Package domain holds the interview records shared by the session core,
// the storage backends and the transports.
package domain

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// State is the lifecycle state of an interview session.
type State string

const (
	StateCreated    State = "created"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
)

// Mode selects where questions and feedback come from.
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
)

// ParseMode validates a configured mode. Empty means static.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStatic:
		return ModeStatic, nil
	case ModeDynamic:
		return ModeDynamic, nil
	default:
		return "", fmt.Errorf("unknown interview mode %q", s)
	}
}

// SideMetrics are optional observations supplied by the caller alongside a
// response, for example a confidence score from an emotion detector.
type SideMetrics struct {
	Confidence *float64       `json:"confidence,omitempty" mapstructure:"confidence"`
	Emotion    string         `json:"emotion,omitempty" mapstructure:"emotion"`
	Extra      map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// DecodeSideMetrics converts a loosely typed map into SideMetrics. Numeric
// strings are accepted for numeric fields and unknown keys land in Extra.
func DecodeSideMetrics(raw map[string]any) (*SideMetrics, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var m SideMetrics
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &m,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode side metrics: %w", err)
	}
	if m.Confidence != nil && (*m.Confidence < 0 || *m.Confidence > 1) {
		return nil, fmt.Errorf("confidence %v out of range [0, 1]", *m.Confidence)
	}

	return &m, nil
}

// Entry is one question/response/feedback triple. It is never modified after
// being appended to a transcript.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Question  string       `json:"question"`
	Response  string       `json:"response"`
	Feedback  string       `json:"feedback"`
	Tier      string       `json:"tier,omitempty"`
	Score     float64      `json:"score,omitempty"`
	Metrics   *SideMetrics `json:"metrics,omitempty"`
}

// Record is the persisted snapshot of a session.
type Record struct {
	SessionID       string    `json:"session_id"`
	Category        string    `json:"category"`
	Role            string    `json:"role,omitempty"`
	Mode            Mode      `json:"mode"`
	State           State     `json:"state"`
	Timestamp       time.Time `json:"timestamp"`
	Transcript      []Entry   `json:"transcript"`
	FinalAssessment string    `json:"final_assessment,omitempty"`
}
