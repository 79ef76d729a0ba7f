package interview

import (
	"sync"
	"time"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/questionbank"
)

// Session is the mutable state of one interview. All fields are guarded by mu;
// the service holds it for the whole of an operation so calls on the same
// session never interleave.
type Session struct {
	mu sync.Mutex

	id       string
	category string
	role     string
	mode     domain.Mode
	state    domain.State
	quota    int

	// asked counts questions presented to the candidate, including the current one.
	asked int
	// index is the position of the current question in the bank (static mode).
	index   int
	current questionbank.Question

	transcript []domain.Entry
	final      string

	createdAt time.Time
	updatedAt time.Time
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID              string         `json:"session_id"`
	Category        string         `json:"category"`
	Role            string         `json:"role,omitempty"`
	Mode            domain.Mode    `json:"mode"`
	State           domain.State   `json:"state"`
	Quota           int            `json:"quota"`
	Asked           int            `json:"questions_asked"`
	CurrentQuestion string         `json:"current_question,omitempty"`
	Transcript      []domain.Entry `json:"transcript"`
	FinalAssessment string         `json:"final_assessment,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func newSession(id, category, role string, mode domain.Mode, quota int, now time.Time) *Session {
	return &Session{
		id:        id,
		category:  category,
		role:      role,
		mode:      mode,
		state:     domain.StateCreated,
		quota:     quota,
		createdAt: now,
		updatedAt: now,
	}
}

// begin moves a created session to in progress with its first question.
func (s *Session) begin(first questionbank.Question, now time.Time) {
	s.current = first
	s.index = 0
	s.asked = 1
	s.state = domain.StateInProgress
	s.updatedAt = now
}

// record appends an entry and reports whether the quota is now reached.
func (s *Session) record(entry domain.Entry) bool {
	s.transcript = append(s.transcript, entry)
	s.updatedAt = entry.Timestamp
	return len(s.transcript) >= s.quota
}

func (s *Session) advance(next questionbank.Question, index int) {
	s.current = next
	s.index = index
	s.asked++
}

func (s *Session) complete(assessment string, now time.Time) {
	s.final = assessment
	s.current = questionbank.Question{}
	s.state = domain.StateComplete
	s.updatedAt = now
}

func (s *Session) transcriptCopy() []domain.Entry {
	out := make([]domain.Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) snapshot() *Snapshot {
	return &Snapshot{
		ID:              s.id,
		Category:        s.category,
		Role:            s.role,
		Mode:            s.mode,
		State:           s.state,
		Quota:           s.quota,
		Asked:           s.asked,
		CurrentQuestion: s.current.Text,
		Transcript:      s.transcriptCopy(),
		FinalAssessment: s.final,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
}

func (s *Session) toRecord() *domain.Record {
	return &domain.Record{
		SessionID:       s.id,
		Category:        s.category,
		Role:            s.role,
		Mode:            s.mode,
		State:           s.state,
		Timestamp:       s.createdAt,
		Transcript:      s.transcriptCopy(),
		FinalAssessment: s.final,
	}
}
