// Package storage defines the persistence interface for chunks, sources and ingest runs.
package storage

import (
	"context"
	"errors"

	"github.com/BonelessWater/aura/internal/models"
)

// ErrNotFound is wrapped by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Collision records a chunk id that was already stored for a different source.
type Collision struct {
	ChunkID        string `json:"chunk_id"`
	ExistingSource string `json:"existing_source"`
	NewSource      string `json:"new_source"`
}

// Storage defines chunk, source ledger and run persistence operations.
type Storage interface {
	// Chunk operations
	ReplaceChunks(ctx context.Context, source string, chunks []*models.ChunkRecord) ([]Collision, error)
	GetChunk(ctx context.Context, id string) (*models.ChunkRecord, error)
	ListChunksBySource(ctx context.Context, source string) ([]*models.ChunkRecord, error)
	DeleteChunksBySource(ctx context.Context, source string) error

	// Source ledger
	PutSource(ctx context.Context, src *models.SourceRecord) error
	GetSource(ctx context.Context, path string) (*models.SourceRecord, error)
	DeleteSource(ctx context.Context, path string) error
	ListSources(ctx context.Context, offset, limit int) ([]*models.SourceRecord, error)

	// Ingest runs
	CreateRun(ctx context.Context, run *models.IngestRun) error
	FinishRun(ctx context.Context, run *models.IngestRun) error
	GetRun(ctx context.Context, id string) (*models.IngestRun, error)
	LatestRun(ctx context.Context) (*models.IngestRun, error)

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)
	CountByCluster(ctx context.Context) (map[string]int64, error)

	Close() error
}
