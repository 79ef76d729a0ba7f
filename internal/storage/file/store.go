// Package file stores interview records as JSON documents, one per session.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/storage"
)

const (
	prefix = "interview_record_"
	suffix = ".json"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store writes records under a single directory.
type Store struct {
	dir string
}

var _ storage.Store = (*Store)(nil)

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file a record with the given id is written to.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, prefix+sessionID+suffix)
}

// Save writes the record through a temporary file so readers never observe a
// partially written document.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	if err := storage.Validate(rec); err != nil {
		return err
	}
	if err := checkID(rec.SessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create records dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, prefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod record: %w", err)
	}

	path := s.Path(rec.SessionID)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write record %s: %w", path, err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	if err := checkID(sessionID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", sessionID, err)
	}

	return &rec, nil
}

// List returns saved session ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read records dir %s: %w", s.dir, err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
	}
	sort.Strings(ids)

	return ids, nil
}

func (s *Store) Close() error {
	return nil
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
