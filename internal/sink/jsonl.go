package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/BonelessWater/aura/internal/models"
)

// JSONLSink appends chunks to a writer as JSON lines.
type JSONLSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewJSONLSink writes to w. Close does not close w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// OpenJSONLFile opens path for appending, creating parent directories as needed.
func OpenJSONLFile(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create jsonl directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl file: %w", err)
	}
	return &JSONLSink{w: f, closer: f}, nil
}

// Publish writes one line per chunk. A batch is written in a single call.
func (s *JSONLSink) Publish(_ context.Context, _ string, chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	data, err := encodeLines(chunks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}
	return nil
}

// Close closes the underlying file when the sink opened it.
func (s *JSONLSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
