package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medipatient-api-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store. It creates the
// database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a Record, decoding the JSON snapshots.
func scanRecord(s scanner) (*Record, error) {
	record := &Record{}
	var patientJSON, diagnosisJSON string

	err := s.Scan(&record.ID, &patientJSON, &diagnosisJSON, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.Patient = &domain.PatientRecord{}
	if err := json.Unmarshal([]byte(patientJSON), record.Patient); err != nil {
		return nil, fmt.Errorf("decoding patient snapshot: %w", err)
	}
	record.Diagnosis = &domain.FinalDiagnosis{}
	if err := json.Unmarshal([]byte(diagnosisJSON), record.Diagnosis); err != nil {
		return nil, fmt.Errorf("decoding diagnosis snapshot: %w", err)
	}
	return record, nil
}

// createSchema creates the database tables and indexes. The denormalized
// diagnosis columns exist for querying; the JSON snapshots are the
// source of truth.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnoses (
		id TEXT PRIMARY KEY,
		patient TEXT NOT NULL,
		diagnosis TEXT NOT NULL,
		primary_diagnosis TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL DEFAULT '',
		severity REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_diagnoses_created_at ON diagnoses(created_at);
	CREATE INDEX IF NOT EXISTS idx_diagnoses_urgency ON diagnoses(urgency);
	`

	_, err := db.Exec(schema)
	return err
}

// Save persists a completed diagnosis.
func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	if record.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	patientJSON, err := json.Marshal(record.Patient)
	if err != nil {
		return fmt.Errorf("encoding patient snapshot: %w", err)
	}
	diagnosisJSON, err := json.Marshal(record.Diagnosis)
	if err != nil {
		return fmt.Errorf("encoding diagnosis snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnoses (
			id, patient, diagnosis,
			primary_diagnosis, urgency, severity, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		string(patientJSON),
		string(diagnosisJSON),
		record.Diagnosis.PrimaryDiagnosis,
		string(record.Diagnosis.UrgencyLevel),
		record.Diagnosis.SeverityScore,
		string(record.Diagnosis.Source),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient, diagnosis, created_at
		FROM diagnoses
		WHERE id = ?
	`, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// List returns records with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient, diagnosis, created_at
		FROM diagnoses
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnoses").Scan(&count)
	return count, err
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM diagnoses WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
