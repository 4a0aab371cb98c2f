// Package sink publishes chunk batches to downstream consumers.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BonelessWater/aura/internal/models"
)

// Sink receives the chunks produced from one source file.
type Sink interface {
	Publish(ctx context.Context, source string, chunks []*models.ChunkRecord) error
	Close() error
}

// Multi fans a batch out to every sink. All sinks are attempted; errors are joined.
type Multi []Sink

// Publish sends chunks to each sink in order.
func (m Multi) Publish(ctx context.Context, source string, chunks []*models.ChunkRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, source, chunks); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes each sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// encodeLines renders chunks as newline-delimited JSON, one record per line.
func encodeLines(chunks []*models.ChunkRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, ch := range chunks {
		if err := enc.Encode(ch); err != nil {
			return nil, fmt.Errorf("encode chunk %s: %w", ch.ChunkID, err)
		}
	}
	return buf.Bytes(), nil
}
