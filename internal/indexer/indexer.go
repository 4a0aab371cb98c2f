// Package indexer runs ingestion: chunk assembly into storage, keyword index and sinks.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BonelessWater/aura/internal/archive"
	"github.com/BonelessWater/aura/internal/chunker"
	"github.com/BonelessWater/aura/internal/keyword"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/sink"
	"github.com/BonelessWater/aura/internal/storage"
)

// Indexer ingests source files into storage, the keyword index and the configured sinks.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	assembler    *chunker.Assembler
	sink         sink.Sink
	logger       *zap.Logger
	force        bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSink sets the sink chunk batches are published to.
func WithSink(s sink.Sink) IndexerOption {
	return func(idx *Indexer) { idx.sink = s }
}

// WithForce disables the unchanged-file check so every file is re-ingested.
func WithForce(force bool) IndexerOption {
	return func(idx *Indexer) { idx.force = force }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Storage, keywordIndex keyword.KeywordIndex, assembler *chunker.Assembler, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      store,
		keywordIndex: keywordIndex,
		assembler:    assembler,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Result describes the outcome of ingesting one file.
type Result struct {
	Path       string              `json:"path"`
	Chunks     int                 `json:"chunks"`
	Skipped    bool                `json:"skipped"`
	Collisions []storage.Collision `json:"collisions,omitempty"`
}

// IndexFile ingests the file at path. Unchanged files (same mtime and size as the
// ledger entry) are skipped. Re-ingesting a file replaces all of its previous chunks.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !archive.Supported(absPath) {
		return nil, fmt.Errorf("%s: %w", absPath, archive.ErrUnsupported)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	res := &Result{Path: absPath}

	if !idx.force {
		if src, err := idx.storage.GetSource(ctx, absPath); err == nil &&
			src.ModTime == info.ModTime().UnixNano() && src.Size == info.Size() {
			idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
			res.Skipped = true
			res.Chunks = src.ChunkCount
			return res, nil
		}
	}

	doc, err := idx.assembler.Load(absPath)
	if err != nil {
		return nil, err
	}
	chunks := slices.Collect(idx.assembler.Chunks(doc))

	collisions, err := idx.storage.ReplaceChunks(ctx, absPath, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	for _, c := range collisions {
		idx.logger.Warn("chunk id collision, earlier chunk overwritten",
			zap.String("chunk_id", c.ChunkID),
			zap.String("existing_source", c.ExistingSource),
			zap.String("new_source", c.NewSource))
	}
	res.Collisions = collisions

	if _, err := idx.keywordIndex.DeleteBySource(ctx, absPath); err != nil {
		return nil, fmt.Errorf("failed to clear keyword index: %w", err)
	}
	if err := idx.keywordIndex.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index keywords: %w", err)
	}
	if idx.sink != nil {
		if err := idx.sink.Publish(ctx, absPath, chunks); err != nil {
			return nil, fmt.Errorf("failed to publish chunks: %w", err)
		}
	}

	src := &models.SourceRecord{
		Path:       absPath,
		DocKey:     doc.Key,
		ModTime:    info.ModTime().UnixNano(),
		Size:       info.Size(),
		ChunkCount: len(chunks),
		RunID:      runIDFrom(ctx),
		IngestedAt: time.Now(),
	}
	if err := idx.storage.PutSource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to record source: %w", err)
	}
	res.Chunks = len(chunks)
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.Int("chunks", len(chunks)))
	return res, nil
}

// IndexDirectory ingests every supported file under dir in path order as one run.
// A file that fails is logged and counted; it does not stop the run.
// Cancelling ctx stops the run after the current file.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string) (*models.IngestRun, error) {
	paths, err := chunker.Discover(dir)
	if err != nil {
		return nil, err
	}
	root, _ := filepath.Abs(dir)
	run := &models.IngestRun{ID: uuid.New().String(), Root: root, StartedAt: time.Now()}
	if err := idx.storage.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	idx.logger.Info("ingest run started", zap.String("run_id", run.ID), zap.String("root", root), zap.Int("files", len(paths)))

	runCtx := withRunID(ctx, run.ID)
	var runErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		run.FilesSeen++
		res, err := idx.IndexFile(runCtx, p)
		switch {
		case err != nil:
			run.FilesFailed++
			idx.logSkip(p, err)
		case res.Skipped:
			run.FilesSkipped++
		default:
			run.FilesIngested++
			run.Chunks += res.Chunks
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	// Record the run even when ctx was cancelled.
	if err := idx.storage.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return run, fmt.Errorf("failed to finish run: %w", err)
	}
	idx.logger.Info("ingest run finished",
		zap.String("run_id", run.ID),
		zap.Int("ingested", run.FilesIngested),
		zap.Int("skipped", run.FilesSkipped),
		zap.Int("failed", run.FilesFailed),
		zap.Int("chunks", run.Chunks),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)))
	return run, runErr
}

// RemoveSource deletes a source's chunks from storage and the keyword index.
func (idx *Indexer) RemoveSource(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	n, err := idx.keywordIndex.DeleteBySource(ctx, absPath)
	if err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.storage.DeleteSource(ctx, absPath); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	idx.logger.Debug("indexer source removed", zap.String("path", absPath), zap.Int("chunks", n))
	return nil
}

func (idx *Indexer) logSkip(path string, err error) {
	switch {
	case errors.Is(err, archive.ErrNoMarkup):
		idx.logger.Warn("archive has no article markup, skipping", zap.String("path", path))
	default:
		idx.logger.Warn("failed to ingest file, skipping", zap.String("path", path), zap.Error(err))
	}
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
