package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/healthcore/internal/model"
)

// SQLiteSink persists every committed audit event for restart durability.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the audit database at path and ensures
// the schema exists.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database at '%s': %w", path, err)
	}
	if err := initializeAuditSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, e *model.AuditEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(event_id, patient_id, seq, kind, actor_id, actor_role, ts, location, emergency, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.PatientID, e.Sequence, string(e.Kind), e.ActorID, string(e.ActorRole),
		e.Timestamp.UTC(), e.Location, e.Emergency, string(details))
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Flush(ctx context.Context) error { return nil }

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// LastSequence returns the highest committed sequence for a patient, used
// to resume numbering after restart.
func (s *SQLiteSink) LastSequence(ctx context.Context, patientID string) (uint64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM audit_events WHERE patient_id = ?
	`, patientID)
	var seq uint64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read last sequence for patient '%s': %w", patientID, err)
	}
	return seq, nil
}

func initializeAuditSchema(ctx context.Context, db *sql.DB) error {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='audit_events'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check if audit_events table exists: %w", err)
	}
	if count == 0 {
		_, err = db.ExecContext(ctx, `
			CREATE TABLE audit_events (
				event_id TEXT PRIMARY KEY,
				patient_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				kind TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				actor_role TEXT NOT NULL,
				ts DATETIME NOT NULL,
				location TEXT,
				emergency BOOLEAN DEFAULT FALSE,
				details TEXT,
				UNIQUE (patient_id, seq)
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to create audit_events table: %w", err)
		}
		_, err = db.ExecContext(ctx, `
			CREATE INDEX idx_audit_events_patient
			ON audit_events(patient_id, seq)
		`)
		if err != nil {
			return fmt.Errorf("failed to create index on audit_events table: %w", err)
		}
	}
	return nil
}
