// Package sqlite stores interview records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/storage"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (and if needed creates) the database at dsn.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// defaultPragmas run on every pooled connection; synchronous and busy_timeout
// are per connection in SQLite.
var defaultPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// withPragmas appends the default pragmas to dsn unless it already sets them.
func withPragmas(dsn string) string {
	lower := strings.ToLower(dsn)
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range defaultPragmas {
		name := p[:strings.Index(p, "(")]
		if strings.Contains(lower, "_pragma="+name) {
			continue
		}
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interview_records (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			role TEXT,
			mode TEXT NOT NULL,
			state TEXT NOT NULL,
			final_assessment TEXT,
			transcript TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interview_records_category ON interview_records(category)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	if err := storage.Validate(rec); err != nil {
		return err
	}

	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	query := `INSERT INTO interview_records (id, category, role, mode, state, final_assessment, transcript, started_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			role = excluded.role,
			mode = excluded.mode,
			state = excluded.state,
			final_assessment = excluded.final_assessment,
			transcript = excluded.transcript,
			saved_at = excluded.saved_at`

	_, err = s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Category, rec.Role, string(rec.Mode), string(rec.State),
		rec.FinalAssessment, string(transcript), rec.Timestamp.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	query := `SELECT id, category, role, mode, state, final_assessment, transcript, started_at
		FROM interview_records WHERE id = ?`

	var (
		rec        domain.Record
		role       sql.NullString
		assessment sql.NullString
		mode       string
		state      string
		transcript string
	)

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.Category, &role, &mode, &state, &assessment, &transcript, &rec.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	rec.Role = role.String
	rec.FinalAssessment = assessment.String
	rec.Mode = domain.Mode(mode)
	rec.State = domain.State(state)

	return &rec, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM interview_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
