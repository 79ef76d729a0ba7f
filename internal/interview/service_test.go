package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/metrics"
	"github.com/spigell/prepmate/internal/questionbank"
	"github.com/spigell/prepmate/internal/storage"
	"github.com/spigell/prepmate/internal/storage/file"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func newStaticService(t *testing.T, cfg Config, deps Deps) *Service {
	t.Helper()
	if deps.Bank == nil {
		deps.Bank = questionbank.Default()
	}
	if deps.NewID == nil {
		deps.NewID = sequentialIDs()
	}
	svc, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestStaticInterviewCyclesThroughQuota(t *testing.T) {
	t.Parallel()

	bank := questionbank.Default()
	questions, _ := bank.QuestionsFor("Technical")
	m := metrics.New()
	svc := newStaticService(t, Config{}, Deps{Bank: bank, Metrics: m})

	start, err := svc.Start(context.Background(), "Technical", "Backend Engineer")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.Question != questions[0].Text {
		t.Fatalf("expected first question %q, got %q", questions[0].Text, start.Question)
	}
	if start.Number != 1 || start.Quota != DefaultQuota {
		t.Fatalf("unexpected start result %+v", start)
	}

	for i := 0; i < DefaultQuota; i++ {
		res, err := svc.Submit(context.Background(), start.SessionID, fmt.Sprintf("answer %d", i), nil)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}

		last := i == DefaultQuota-1
		if res.Complete != last {
			t.Fatalf("submit %d: expected complete=%v", i, last)
		}
		if last {
			if res.FinalAssessment == "" || res.NextQuestion != "" {
				t.Fatalf("expected final assessment only, got %+v", res)
			}
			if res.Number != DefaultQuota {
				t.Fatalf("expected %d questions asked, got %d", DefaultQuota, res.Number)
			}
			continue
		}
		if res.NextQuestion != questions[i+1].Text {
			t.Fatalf("submit %d: expected next question %q, got %q", i, questions[i+1].Text, res.NextQuestion)
		}
		if res.Number != i+2 {
			t.Fatalf("submit %d: expected question number %d, got %d", i, i+2, res.Number)
		}
	}

	snap, err := svc.Get(start.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.State != domain.StateComplete {
		t.Fatalf("expected complete state, got %s", snap.State)
	}
	if len(snap.Transcript) != DefaultQuota {
		t.Fatalf("expected %d transcript entries, got %d", DefaultQuota, len(snap.Transcript))
	}
	for i, entry := range snap.Transcript {
		if entry.Question != questions[i].Text || entry.Response != fmt.Sprintf("answer %d", i) {
			t.Fatalf("entry %d out of order: %+v", i, entry)
		}
	}

	_, err = svc.Submit(context.Background(), start.SessionID, "one more", nil)
	if !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState, got %v", err)
	}
	if _, err := svc.CurrentQuestion(start.SessionID); !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState for current question, got %v", err)
	}

	s := m.Snapshot()
	if s.SessionsStarted != 1 || s.SessionsCompleted != 1 || s.ResponsesScored != DefaultQuota {
		t.Fatalf("unexpected metrics %+v", s)
	}
}

func TestStaticCycleWrapsWhenQuotaExceedsBank(t *testing.T) {
	t.Parallel()

	bank, err := questionbank.New([]questionbank.Category{{
		Name:      "Tiny",
		Questions: []questionbank.Question{{Text: "A?"}, {Text: "B?"}},
	}})
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	svc := newStaticService(t, Config{Quota: 4}, Deps{Bank: bank})

	start, _ := svc.Start(context.Background(), "Tiny", "")
	got := []string{start.Question}
	for i := 0; i < 3; i++ {
		res, err := svc.Submit(context.Background(), start.SessionID, "", nil)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		got = append(got, res.NextQuestion)
	}

	if strings.Join(got, ",") != "A?,B?,A?,B?" {
		t.Fatalf("unexpected question order %v", got)
	}
}

func TestSubmitKeywordFeedback(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{}, Deps{})
	start, _ := svc.Start(context.Background(), "Technical", "Backend Engineer")

	res, err := svc.Submit(context.Background(), start.SessionID, "It uses encapsulation and inheritance", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Tier != "good" {
		t.Fatalf("expected good tier, got %q", res.Tier)
	}
	if !strings.Contains(res.Feedback, "Consider discussing: polymorphism, abstraction.") {
		t.Fatalf("unexpected feedback %q", res.Feedback)
	}
}

func TestSubmitEmptyResponse(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{}, Deps{})
	start, _ := svc.Start(context.Background(), "Behavioral", "")

	res, err := svc.Submit(context.Background(), start.SessionID, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Tier != "exploratory" {
		t.Fatalf("expected exploratory tier, got %q", res.Tier)
	}
}

func TestSubmitKeepsSideMetrics(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{}, Deps{})
	start, _ := svc.Start(context.Background(), "Finance", "")

	confidence := 0.4
	if _, err := svc.Submit(context.Background(), start.SessionID, "cash flow", &domain.SideMetrics{Confidence: &confidence}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap, _ := svc.Get(start.SessionID)
	if m := snap.Transcript[0].Metrics; m == nil || *m.Confidence != 0.4 {
		t.Fatalf("expected metrics on entry, got %+v", m)
	}
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{}, Deps{Store: file.New(t.TempDir())})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "missing", "hi", nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("submit: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Save(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("save: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get: expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.End("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("end: expected ErrSessionNotFound, got %v", err)
	}
}

func TestCategoryPolicy(t *testing.T) {
	t.Parallel()

	reject := newStaticService(t, Config{}, Deps{})
	if _, err := reject.Start(context.Background(), "Astrology", ""); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if reject.Live() != 0 {
		t.Fatalf("rejected start must not create a session")
	}

	core, observed := observer.New(zapcore.WarnLevel)
	fallback := newStaticService(t, Config{CategoryPolicy: PolicyDefault, DefaultCategory: "Design"}, Deps{Logger: zap.New(core)})
	res, err := fallback.Start(context.Background(), "Astrology", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Category != "Design" || !res.CategoryCorrected {
		t.Fatalf("expected correction to Design, got %+v", res)
	}
	if observed.FilterMessage("unknown category replaced by default").Len() != 1 {
		t.Fatalf("expected a warning about the correction")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	bank := questionbank.Default()
	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{name: "missing bank", cfg: Config{}, deps: Deps{}},
		{name: "unknown mode", cfg: Config{Mode: "llm"}, deps: Deps{Bank: bank}},
		{name: "dynamic without coach", cfg: Config{Mode: domain.ModeDynamic}, deps: Deps{Bank: bank}},
		{name: "unknown policy", cfg: Config{CategoryPolicy: "guess"}, deps: Deps{Bank: bank}},
		{name: "bad default category", cfg: Config{CategoryPolicy: PolicyDefault, DefaultCategory: "Nope"}, deps: Deps{Bank: bank}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg, tt.deps); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	store := file.New(t.TempDir())
	m := metrics.New()
	svc := newStaticService(t, Config{Quota: 2}, Deps{Store: store, Metrics: m})
	ctx := context.Background()

	start, _ := svc.Start(ctx, "Legal", "Counsel")
	if _, err := svc.Submit(ctx, start.SessionID, "mediation first", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, err := svc.Save(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("save in progress: %v", err)
	}
	if rec.State != domain.StateInProgress {
		t.Fatalf("expected in progress record, got %s", rec.State)
	}
	if _, err := svc.Get(start.SessionID); err != nil {
		t.Fatalf("in-progress session must stay live after save: %v", err)
	}

	if _, err := svc.Submit(ctx, start.SessionID, "policies and training", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Save(ctx, start.SessionID); err != nil {
		t.Fatalf("save complete: %v", err)
	}
	if _, err := svc.Get(start.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("complete session should leave the live table after save, got %v", err)
	}

	loaded, err := store.Load(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Category != "Legal" || loaded.Role != "Counsel" || loaded.State != domain.StateComplete {
		t.Fatalf("unexpected loaded record %+v", loaded)
	}
	if len(loaded.Transcript) != 2 || loaded.Transcript[0].Response != "mediation first" || loaded.Transcript[1].Response != "policies and training" {
		t.Fatalf("unexpected transcript %+v", loaded.Transcript)
	}
	if loaded.FinalAssessment == "" {
		t.Fatalf("expected final assessment to be persisted")
	}
	if m.Snapshot().SessionsSaved != 2 {
		t.Fatalf("expected 2 saves, got %d", m.Snapshot().SessionsSaved)
	}
}

type failingStore struct{ storage.Store }

func (failingStore) Save(context.Context, *domain.Record) error {
	return errors.New("disk full")
}

func TestSavePersistenceErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	noStore := newStaticService(t, Config{}, Deps{})
	start, _ := noStore.Start(ctx, "Media", "")
	if _, err := noStore.Save(ctx, start.SessionID); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence without store, got %v", err)
	}

	broken := newStaticService(t, Config{}, Deps{Store: failingStore{}})
	start, _ = broken.Start(ctx, "Media", "")
	_, err := broken.Save(ctx, start.SessionID)
	if !errors.Is(err, ErrPersistence) || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected wrapped ErrPersistence, got %v", err)
	}
	if _, err := broken.Get(start.SessionID); err != nil {
		t.Fatalf("failed save must keep the session live: %v", err)
	}
}

func TestEnd(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{}, Deps{})
	start, _ := svc.Start(context.Background(), "Fashion", "")

	if err := svc.End(start.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Submit(context.Background(), start.SessionID, "x", nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after end, got %v", err)
	}
}

func TestConcurrentSubmitsOnSameSession(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{Quota: 5}, Deps{})
	start, _ := svc.Start(context.Background(), "Technical", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), start.SessionID, fmt.Sprintf("r%d", i), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrInvalidSessionState):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 5 || rejected != 15 {
		t.Fatalf("expected 5 accepted and 15 rejected, got %d and %d", accepted, rejected)
	}
	snap, _ := svc.Get(start.SessionID)
	if len(snap.Transcript) != 5 || snap.Asked != 5 {
		t.Fatalf("quota exceeded: %d entries, %d asked", len(snap.Transcript), snap.Asked)
	}
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	svc := newStaticService(t, Config{Quota: 3}, Deps{NewID: nil})
	categories := svc.Categories()

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start, err := svc.Start(context.Background(), categories[i%len(categories)], "")
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			for j := 0; j < 3; j++ {
				if _, err := svc.Submit(context.Background(), start.SessionID, "answer", nil); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
			snap, err := svc.Get(start.SessionID)
			if err != nil || len(snap.Transcript) != 3 || snap.State != domain.StateComplete {
				t.Errorf("unexpected snapshot %+v (%v)", snap, err)
			}
		}(i)
	}
	wg.Wait()

	if svc.Live() != 24 {
		t.Fatalf("expected 24 live sessions, got %d", svc.Live())
	}
}

func TestSessionTimestampsUseClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc := newStaticService(t, Config{}, Deps{Now: func() time.Time { return now }})
	start, _ := svc.Start(context.Background(), "Education", "")
	if _, err := svc.Submit(context.Background(), start.SessionID, "feedback loops", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap, _ := svc.Get(start.SessionID)
	if !snap.CreatedAt.Equal(now) || !snap.Transcript[0].Timestamp.Equal(now) {
		t.Fatalf("expected clock timestamps, got %+v", snap)
	}
}
