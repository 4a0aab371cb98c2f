package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BonelessWater/aura/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		doc_key TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		run_id TEXT,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		doi TEXT,
		journal TEXT,
		year INTEGER,
		section TEXT NOT NULL,
		cluster_tag TEXT,
		text TEXT NOT NULL,
		pmc_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_path, chunk_index);
	CREATE INDEX IF NOT EXISTS idx_chunks_cluster ON chunks(cluster_tag);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		files_seen INTEGER NOT NULL DEFAULT 0,
		files_ingested INTEGER NOT NULL DEFAULT 0,
		files_skipped INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON ingest_runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

const chunkColumns = `chunk_id, source_path, chunk_index, doi, journal, year, section, cluster_tag, text, pmc_id`

// ReplaceChunks deletes the stored chunks of source and inserts chunks in one transaction.
// A chunk id already stored for another source is overwritten and reported as a Collision.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, source string, chunks []*models.ChunkRecord) ([]Collision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, source); err != nil {
		return nil, fmt.Errorf("failed to delete old chunks: %w", err)
	}

	lookup, err := tx.PrepareContext(ctx, `SELECT source_path FROM chunks WHERE chunk_id = ?`)
	if err != nil {
		return nil, err
	}
	defer lookup.Close()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (`+chunkColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var collisions []Collision
	now := time.Now()
	for _, ch := range chunks {
		var existing string
		switch err := lookup.QueryRowContext(ctx, ch.ChunkID).Scan(&existing); {
		case err == nil:
			// Rows of this source were deleted above, so any hit belongs to another source.
			collisions = append(collisions, Collision{ChunkID: ch.ChunkID, ExistingSource: existing, NewSource: source})
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to check chunk %s: %w", ch.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ChunkID, source, ch.Index,
			nullString(ch.DOI), nullString(ch.Journal), nullInt(ch.Year),
			ch.Section, nullString(ch.ClusterTag), ch.Text, ch.PMCID, now,
		); err != nil {
			return nil, fmt.Errorf("failed to store chunk %s: %w", ch.ChunkID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return collisions, nil
}

// GetChunk returns a chunk by id.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.ChunkRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE chunk_id = ?`, id)
	ch, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChunksBySource returns the chunks of one source ordered by window index.
func (s *SQLiteStorage) ListChunksBySource(ctx context.Context, source string) ([]*models.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source_path = ? ORDER BY chunk_index`,
		source,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.ChunkRecord
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// DeleteChunksBySource removes all chunks of a source.
func (s *SQLiteStorage) DeleteChunksBySource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, source)
	return err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountByCluster returns chunk counts per cluster tag. Untagged chunks are counted under "".
func (s *SQLiteStorage) CountByCluster(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(cluster_tag, ''), COUNT(*) FROM chunks GROUP BY cluster_tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var tag string
		var n int64
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] += n
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(r rowScanner) (*models.ChunkRecord, error) {
	var ch models.ChunkRecord
	var doi, journal, tag sql.NullString
	var year sql.NullInt64
	if err := r.Scan(&ch.ChunkID, &ch.Source, &ch.Index, &doi, &journal, &year, &ch.Section, &tag, &ch.Text, &ch.PMCID); err != nil {
		return nil, err
	}
	ch.DOI = stringFromNull(doi)
	ch.Journal = stringFromNull(journal)
	ch.ClusterTag = stringFromNull(tag)
	if year.Valid {
		ch.Year = models.IntPtr(int(year.Int64))
	}
	return &ch, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func stringFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
