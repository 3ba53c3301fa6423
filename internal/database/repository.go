package database

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/types"
)

// Repository stores and reads evidence records
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// InsertEvidence stores records in a single transaction and returns the run
// they were stored under. Nothing is written when any record fails.
func (r *Repository) InsertEvidence(ctx context.Context, source string, records []types.Evidence) (*IngestRun, error) {
	run := NewIngestRun(source, len(records))

	insertRun, err := r.db.GetPreparedStatement("insert_run")
	if err != nil {
		return nil, err
	}
	insertEvidence, err := r.db.GetPreparedStatement("insert_evidence")
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, insertRun).ExecContext(ctx, run.ID, run.Source, run.Records, run.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create ingest run: %w", err)
	}

	stmt := tx.StmtContext(ctx, insertEvidence)
	for i, rec := range records {
		identifiers, err := encodeList(rec.Identifiers)
		if err != nil {
			return nil, apperrors.WrapError(err, "record %d", i)
		}
		imports, err := encodeList(rec.Imports)
		if err != nil {
			return nil, apperrors.WrapError(err, "record %d", i)
		}

		_, err = stmt.ExecContext(ctx, run.ID, rec.DeveloperID, rec.RepositoryID, rec.FileID,
			rec.Revision, rec.Language, identifiers, imports, rec.Occurrences)
		if err != nil {
			return nil, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit evidence: %w", err)
	}

	return run, nil
}

// ListEvidence returns every stored record in insertion order
func (r *Repository) ListEvidence(ctx context.Context) ([]types.Evidence, error) {
	stmt, err := r.db.GetPreparedStatement("list_evidence")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var records []types.Evidence
	for rows.Next() {
		var rec types.Evidence
		var identifiers, imports string
		if err := rows.Scan(&rec.DeveloperID, &rec.RepositoryID, &rec.FileID, &rec.Revision,
			&rec.Language, &identifiers, &imports, &rec.Occurrences); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		if rec.Identifiers, err = decodeList(identifiers); err != nil {
			return nil, err
		}
		if rec.Imports, err = decodeList(imports); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}

	return records, nil
}

// Records implements evidence.Source
func (r *Repository) Records(ctx context.Context) ([]types.Evidence, error) {
	return r.ListEvidence(ctx)
}

// CountEvidence returns the number of stored records
func (r *Repository) CountEvidence(ctx context.Context) (int, error) {
	stmt, err := r.db.GetPreparedStatement("count_evidence")
	if err != nil {
		return 0, err
	}

	var n int
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return n, nil
}

// ListRuns returns every ingest run, oldest first
func (r *Repository) ListRuns(ctx context.Context) ([]IngestRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, records, created_at
		FROM ingest_runs
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var run IngestRun
		if err := rows.Scan(&run.ID, &run.Source, &run.Records, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(s string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}
