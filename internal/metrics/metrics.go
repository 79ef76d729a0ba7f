// Package metrics keeps in-process counters for the interview service.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	SessionsStarted    int64     `json:"sessions_started"`
	SessionsCompleted  int64     `json:"sessions_completed"`
	SessionsSaved      int64     `json:"sessions_saved"`
	ResponsesScored    int64     `json:"responses_scored"`
	GenerationCalls    int64     `json:"generation_calls"`
	GenerationFailures int64     `json:"generation_failures"`
	LastUpdateTime     time.Time `json:"last_update_time"`
}

type Metrics struct {
	mu   sync.RWMutex
	data Snapshot
	now  func() time.Time
}

func New() *Metrics {
	m := &Metrics{now: time.Now}
	m.data.LastUpdateTime = m.now()
	return m
}

func (m *Metrics) SessionStarted() {
	m.update(func(s *Snapshot) { s.SessionsStarted++ })
}

func (m *Metrics) SessionCompleted() {
	m.update(func(s *Snapshot) { s.SessionsCompleted++ })
}

func (m *Metrics) SessionSaved() {
	m.update(func(s *Snapshot) { s.SessionsSaved++ })
}

func (m *Metrics) ResponseScored() {
	m.update(func(s *Snapshot) { s.ResponsesScored++ })
}

// GenerationCall records one call to a language model and whether it succeeded.
func (m *Metrics) GenerationCall(success bool) {
	m.update(func(s *Snapshot) {
		s.GenerationCalls++
		if !success {
			s.GenerationFailures++
		}
	})
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// update is a no-op on a nil receiver so callers may leave metrics unset.
func (m *Metrics) update(fn func(*Snapshot)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.data)
	m.data.LastUpdateTime = m.now()
}
