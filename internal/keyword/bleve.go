package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/BonelessWater/aura/internal/models"
)

// Indexed field names.
const (
	fieldText    = "text"
	fieldCluster = "cluster_tag"
	fieldSection = "section"
	fieldDOI     = "doi"
	fieldPMCID   = "pmc_id"
	fieldSource  = "source"
	fieldYear    = "year"
)

const deletePageSize = 500

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so incremental ingestion keeps earlier chunks searchable.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps disease names intact.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	for _, f := range []string{fieldCluster, fieldSection, fieldDOI, fieldPMCID, fieldSource} {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	docMapping.AddFieldMappingsAt(fieldYear, bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// chunkDoc flattens a chunk into the map Bleve indexes. Absent optionals are left out.
func chunkDoc(ch *models.ChunkRecord) map[string]interface{} {
	doc := map[string]interface{}{
		fieldText:    ch.Text,
		fieldSection: ch.Section,
		fieldPMCID:   ch.PMCID,
		fieldSource:  ch.Source,
	}
	if ch.ClusterTag != nil {
		doc[fieldCluster] = *ch.ClusterTag
	}
	if ch.DOI != nil {
		doc[fieldDOI] = *ch.DOI
	}
	if ch.Year != nil {
		doc[fieldYear] = float64(*ch.Year)
	}
	return doc
}

// Index adds or replaces chunks in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ChunkID, chunkDoc(ch)); err != nil {
			return fmt.Errorf("failed to add chunk %s to batch: %w", ch.ChunkID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search matches query against chunk text and applies the filters in opts.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	fuzziness := 2
	if opts.Fuzziness > 0 {
		fuzziness = opts.Fuzziness
	}

	var q blevequery.Query
	if opts.FuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldText)
		q = mq
	}

	filters := []blevequery.Query{q}
	if opts.Cluster != "" {
		tq := bleve.NewTermQuery(opts.Cluster)
		tq.SetField(fieldCluster)
		filters = append(filters, tq)
	}
	if opts.YearFrom > 0 || opts.YearTo > 0 {
		var lo, hi *float64
		if opts.YearFrom > 0 {
			v := float64(opts.YearFrom)
			lo = &v
		}
		if opts.YearTo > 0 {
			v := float64(opts.YearTo)
			hi = &v
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
		rq.SetField(fieldYear)
		filters = append(filters, rq)
	}
	if len(filters) > 1 {
		q = bleve.NewConjunctionQuery(filters...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	if opts.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(fieldText)
	}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score, Fragments: hit.Fragments[fieldText]}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries over the text field, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(fieldText)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldText)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteBySource removes every chunk indexed for source and returns how many were removed.
func (b *BleveIndex) DeleteBySource(ctx context.Context, source string) (int, error) {
	removed := 0
	for {
		tq := bleve.NewTermQuery(source)
		tq.SetField(fieldSource)
		req := bleve.NewSearchRequest(tq)
		req.Size = deletePageSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return removed, fmt.Errorf("Bleve source lookup failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return removed, nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return removed, fmt.Errorf("Bleve delete failed: %w", err)
		}
		removed += len(results.Hits)
	}
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
