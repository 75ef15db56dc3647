// Package history provides persistent storage of completed diagnoses.
// Each record snapshots the patient input and the final diagnosis so
// past assessments can be listed, audited, and exported.
package history

import (
	"context"
	"io"
	"time"

	"github.com/medipatient-api-server/internal/domain"
)

// Record is one persisted diagnosis.
type Record struct {
	ID        string                 `json:"id"`
	Patient   *domain.PatientRecord  `json:"patient"`
	Diagnosis *domain.FinalDiagnosis `json:"diagnosis"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store defines the interface for diagnosis history storage.
type Store interface {
	// Save persists a completed diagnosis. The record's ID must be set
	// by the caller.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a record by ID. Returns (nil, nil) when not found.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}
