// Package storage defines the persistence sink for interview records.
package storage

import (
	"context"
	"errors"

	"github.com/spigell/prepmate/internal/domain"
)

// ErrNotFound is returned by Load when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// Store persists interview records. Save overwrites an existing record with
// the same session id.
type Store interface {
	Save(ctx context.Context, rec *domain.Record) error
	Load(ctx context.Context, sessionID string) (*domain.Record, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Validate rejects records that cannot be addressed by id.
func Validate(rec *domain.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.SessionID == "" {
		return errors.New("record has no session id")
	}
	return nil
}
