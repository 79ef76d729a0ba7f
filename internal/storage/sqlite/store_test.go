package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/storage"
)

func newStore(t *testing.T, name string) *Store {
	t.Helper()
	store, err := New("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWithPragmas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "plain path",
			dsn:  "prepmate.db",
			want: "prepmate.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		},
		{
			name: "existing query",
			dsn:  "file:x?mode=memory",
			want: "file:x?mode=memory&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		},
		{
			name: "caller pragma wins",
			dsn:  "x.db?_pragma=synchronous(FULL)",
			want: "x.db?_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := withPragmas(tt.dsn); got != tt.want {
				t.Fatalf("withPragmas(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	store := newStore(t, "pragmas")
	ctx := context.Background()

	// Holding both connections forces the pool to open a second one.
	first, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatalf("first conn: %v", err)
	}
	defer first.Close()
	second, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatalf("second conn: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var synchronous int
		if err := conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&synchronous); err != nil {
			t.Fatalf("conn %d: read synchronous: %v", i, err)
		}
		// 1 is NORMAL; the SQLite default is 2 (FULL).
		if synchronous != 1 {
			t.Fatalf("conn %d: expected synchronous NORMAL (1), got %d", i, synchronous)
		}
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newStore(t, "records1")

	ts := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	rec := &domain.Record{
		SessionID: "session-1",
		Category:  "Finance",
		Role:      "Analyst",
		Mode:      domain.ModeDynamic,
		State:     domain.StateComplete,
		Timestamp: ts,
		Transcript: []domain.Entry{
			{Timestamp: ts, Question: "How do you budget?", Response: "Zero-based.", Feedback: "Good.", Score: 7},
		},
		FinalAssessment: "Well done.",
	}

	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Category != rec.Category || got.Role != rec.Role {
		t.Errorf("Category/Role = %v/%v, want %v/%v", got.Category, got.Role, rec.Category, rec.Role)
	}
	if got.Mode != domain.ModeDynamic || got.State != domain.StateComplete {
		t.Errorf("Mode/State = %v/%v", got.Mode, got.State)
	}
	if got.FinalAssessment != "Well done." {
		t.Errorf("FinalAssessment = %q", got.FinalAssessment)
	}
	if len(got.Transcript) != 1 || got.Transcript[0].Score != 7 || got.Transcript[0].Question != "How do you budget?" {
		t.Errorf("Transcript = %+v", got.Transcript)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestSQLiteStore_Upsert(t *testing.T) {
	store := newStore(t, "records2")

	rec := &domain.Record{SessionID: "s", Category: "Legal", Mode: domain.ModeStatic, State: domain.StateInProgress, Timestamp: time.Now()}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec.State = domain.StateComplete
	rec.Transcript = append(rec.Transcript, domain.Entry{Question: "q", Response: "r", Feedback: "f"})
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(context.Background(), "s")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.State != domain.StateComplete || len(got.Transcript) != 1 {
		t.Errorf("expected updated record, got %+v", got)
	}

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "s" {
		t.Errorf("List() = %v", ids)
	}
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := newStore(t, "records3")

	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_RejectsInvalidRecord(t *testing.T) {
	store := newStore(t, "records4")

	if err := store.Save(context.Background(), &domain.Record{}); err == nil {
		t.Fatal("expected error for record without id")
	}
	if err := store.Save(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}
