package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BonelessWater/aura/internal/models"
)

// PutSource inserts or replaces the ledger entry for src.Path.
func (s *SQLiteStorage) PutSource(ctx context.Context, src *models.SourceRecord) error {
	if src.IngestedAt.IsZero() {
		src.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sources (path, doc_key, mtime, size, chunk_count, run_id, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.Path, src.DocKey, src.ModTime, src.Size, src.ChunkCount, src.RunID, src.IngestedAt,
	)
	return err
}

// GetSource returns the ledger entry for path.
func (s *SQLiteStorage) GetSource(ctx context.Context, path string) (*models.SourceRecord, error) {
	var src models.SourceRecord
	var runID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT path, doc_key, mtime, size, chunk_count, run_id, ingested_at
		 FROM sources WHERE path = ?`, path,
	).Scan(&src.Path, &src.DocKey, &src.ModTime, &src.Size, &src.ChunkCount, &runID, &src.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	src.RunID = runID.String
	return &src, nil
}

// DeleteSource removes the ledger entry and chunks of path.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSources returns ledger entries ordered by path.
func (s *SQLiteStorage) ListSources(ctx context.Context, offset, limit int) ([]*models.SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, doc_key, mtime, size, chunk_count, run_id, ingested_at
		 FROM sources ORDER BY path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SourceRecord
	for rows.Next() {
		var src models.SourceRecord
		var runID sql.NullString
		if err := rows.Scan(&src.Path, &src.DocKey, &src.ModTime, &src.Size, &src.ChunkCount, &runID, &src.IngestedAt); err != nil {
			return nil, err
		}
		src.RunID = runID.String
		out = append(out, &src)
	}
	return out, rows.Err()
}

// CountSources returns the number of ledger entries.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

// CreateRun inserts a new ingest run.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.IngestRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, root, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Root, run.StartedAt,
	)
	return err
}

// FinishRun stores the final counters of run and stamps its finish time.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *models.IngestRun) error {
	now := time.Now()
	run.FinishedAt = &now
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET finished_at = ?, files_seen = ?, files_ingested = ?,
		 files_skipped = ?, files_failed = ?, chunks = ? WHERE id = ?`,
		now, run.FilesSeen, run.FilesIngested, run.FilesSkipped, run.FilesFailed, run.Chunks, run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, root, started_at, finished_at, files_seen, files_ingested, files_skipped, files_failed, chunks`

// GetRun returns an ingest run by id.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.IngestRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started ingest run.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*models.IngestRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return run, err
}

func scanRun(r rowScanner) (*models.IngestRun, error) {
	var run models.IngestRun
	var finished sql.NullTime
	if err := r.Scan(&run.ID, &run.Root, &run.StartedAt, &finished,
		&run.FilesSeen, &run.FilesIngested, &run.FilesSkipped, &run.FilesFailed, &run.Chunks); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
