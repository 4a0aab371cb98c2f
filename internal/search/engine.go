// Package search runs keyword search over stored chunks.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/keyword"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/storage"
)

const snippetLen = 240

// Engine resolves keyword hits to stored chunks.
type Engine struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(store storage.Storage, keywordIndex keyword.KeywordIndex, cfg *config.SearchConfig) *Engine {
	return &Engine{storage: store, keywordIndex: keywordIndex, config: cfg}
}

// Search validates query, runs it against the keyword index and returns ranked hits.
// Scores are normalized to [0,1] by the best hit. Hits whose chunk is no longer
// stored are dropped; any other store failure is returned.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}
	results, err := e.keywordIndex.Search(ctx, query.Query, query.Limit, &keyword.SearchOptions{
		Cluster:      query.Cluster,
		YearFrom:     query.YearFrom,
		YearTo:       query.YearTo,
		FuzzyEnabled: query.Fuzzy,
		Highlight:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	scores := NormalizeKeywordScores(results)

	response := &models.SearchResponse{
		Hits:    make([]*models.SearchHit, 0, len(results)),
		Query:   query.Query,
		Cluster: query.Cluster,
	}
	for _, r := range results {
		chunk, err := e.storage.GetChunk(ctx, r.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s: %w", r.ID, err)
		}
		snippet := Snippet(chunk.Text, snippetLen)
		if len(r.Fragments) > 0 {
			snippet = r.Fragments[0]
		}
		response.Hits = append(response.Hits, &models.SearchHit{
			Chunk:      chunk,
			Source:     chunk.Source,
			Score:      scores[r.ID],
			Highlights: map[string]string{"text": snippet},
			Rank:       len(response.Hits) + 1,
		})
	}
	response.Total = len(response.Hits)
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}
