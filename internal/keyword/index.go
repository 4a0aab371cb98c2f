// Package keyword provides full-text indexing and search over chunk text.
package keyword

import (
	"context"

	"github.com/BonelessWater/aura/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Cluster restricts hits to chunks with this cluster tag.
	Cluster string
	// YearFrom and YearTo bound the publication year, inclusive. Zero means unbounded.
	YearFrom int
	YearTo   int
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Defaults to 2.
	Fuzziness int
	// Highlight requests text fragments around matched terms.
	Highlight bool
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*models.ChunkRecord) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	Close() error
	// DocCount returns the total number of chunks in the index.
	DocCount() (uint64, error)
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID        string
	Score     float64
	Fragments []string
}
