package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/BonelessWater/aura/internal/chunker"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/indexer"
	"github.com/BonelessWater/aura/internal/keyword"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/search"
	"github.com/BonelessWater/aura/internal/sink"
	"github.com/BonelessWater/aura/internal/storage"
)

const e2eSearchLimit = 30

type e2eEnv struct {
	cfg       *config.Config
	inbox     string
	jsonlPath string
	paths     map[string]string
	corpus    *Corpus
	store     *storage.SQLiteStorage
	kw        *keyword.BleveIndex
	assembler *chunker.Assembler
	indexer   *indexer.Indexer
	engine    *search.Engine
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "chunks.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Chunking.WindowSize = 32
	overlap := 8
	cfg.Chunking.Overlap = &overlap
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	env := &e2eEnv{
		cfg:       cfg,
		inbox:     filepath.Join(dir, "inbox"),
		jsonlPath: filepath.Join(dir, "out", "chunks.jsonl"),
		corpus:    BuildCorpus(),
	}
	paths, err := WriteCorpus(env.inbox, env.corpus)
	if err != nil {
		t.Fatal(err)
	}
	env.paths = paths

	env.store, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.store.Close() })

	env.kw, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.kw.Close() })

	env.assembler, err = chunker.NewFromConfig(&cfg.Chunking, cfg.Clusters)
	if err != nil {
		t.Fatal(err)
	}
	jsonl, err := sink.OpenJSONLFile(env.jsonlPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = jsonl.Close() })

	env.indexer = indexer.NewIndexer(env.store, env.kw, env.assembler, indexer.WithSink(jsonl))
	env.engine = search.NewEngine(env.store, env.kw, &cfg.Search)
	return env
}

func (env *e2eEnv) ingest(t *testing.T) *models.IngestRun {
	t.Helper()
	run, err := env.indexer.IndexDirectory(context.Background(), env.inbox)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return run
}

func TestE2E_IngestRunCounts(t *testing.T) {
	env := newE2EEnv(t)
	run := env.ingest(t)

	wantFiles := env.corpus.TotalDocs + 2
	if run.FilesSeen != wantFiles {
		t.Errorf("files seen = %d, want %d", run.FilesSeen, wantFiles)
	}
	if run.FilesIngested != env.corpus.TotalDocs+1 || run.FilesFailed != 1 {
		t.Errorf("ingested=%d failed=%d; want %d and 1 (the archive without markup)",
			run.FilesIngested, run.FilesFailed, env.corpus.TotalDocs+1)
	}

	stored, err := env.store.CountChunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if int64(run.Chunks) != stored {
		t.Errorf("run chunks = %d, stored = %d", run.Chunks, stored)
	}
	docs, err := env.kw.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if int64(docs) != stored {
		t.Errorf("keyword index has %d docs, store has %d chunks", docs, stored)
	}

	latest, err := env.store.LatestRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != run.ID || latest.FinishedAt == nil {
		t.Errorf("latest run = %+v, want finished run %s", latest, run.ID)
	}
}

func TestE2E_SearchReturnsCorrectArticles(t *testing.T) {
	env := newE2EEnv(t)
	env.ingest(t)
	ctx := context.Background()

	for _, tc := range env.corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := env.engine.Search(ctx, &models.SearchQuery{Query: tc.Query, Limit: e2eSearchLimit})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			if !slices.Contains(pmcIDs(resp), tc.ExpectedPMCID) {
				t.Errorf("query %q: expected %s in hits, got %v", tc.Query, tc.ExpectedPMCID, pmcIDs(resp))
			}
			if len(resp.Hits) == 0 {
				t.Fatalf("query %q: no hits", tc.Query)
			}
			if resp.Hits[0].Chunk.PMCID != tc.ExpectedPMCID {
				t.Errorf("query %q: top hit %s, want %s", tc.Query, resp.Hits[0].Chunk.PMCID, tc.ExpectedPMCID)
			}

			filtered, err := env.engine.Search(ctx, &models.SearchQuery{Query: tc.Query, Limit: e2eSearchLimit, Cluster: tc.Cluster})
			if err != nil {
				t.Fatalf("cluster search failed: %v", err)
			}
			if !slices.Contains(pmcIDs(filtered), tc.ExpectedPMCID) {
				t.Errorf("query %q in cluster %q: expected %s, got %v", tc.Query, tc.Cluster, tc.ExpectedPMCID, pmcIDs(filtered))
			}
			for _, h := range filtered.Hits {
				if h.Chunk.ClusterTag == nil || *h.Chunk.ClusterTag != tc.Cluster {
					t.Errorf("cluster filter leaked chunk %s tagged %v", h.Chunk.ChunkID, h.Chunk.ClusterTag)
				}
			}
		})
	}
}

func TestE2E_ChunksCarryArticleMetadata(t *testing.T) {
	env := newE2EEnv(t)
	env.ingest(t)
	ctx := context.Background()

	for _, a := range env.corpus.Articles {
		chunks, err := env.store.ListChunksBySource(ctx, env.paths[a.PMCID])
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) < 2 {
			t.Fatalf("%s: expected several windows, got %d", a.PMCID, len(chunks))
		}
		first := chunks[0]
		if first.Section != models.SectionAbstract || first.ClusterTag == nil || *first.ClusterTag != a.Cluster {
			t.Errorf("%s: first chunk section=%q tag=%v, want abstract/%s", a.PMCID, first.Section, first.ClusterTag, a.Cluster)
		}
		for i, c := range chunks {
			if c.PMCID != a.PMCID || models.Deref(c.DOI) != a.DOI || models.Deref(c.Journal) != a.Journal {
				t.Errorf("%s chunk %d metadata: %+v", a.PMCID, i, c)
			}
			if c.Year == nil || *c.Year != a.Year {
				t.Errorf("%s chunk %d year = %v, want %d", a.PMCID, i, c.Year, a.Year)
			}
		}
	}

	notes, err := env.store.ListChunksBySource(ctx, filepath.Join(env.inbox, NotesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("notes: expected one chunk, got %d", len(notes))
	}
	n := notes[0]
	if n.PMCID != "clinic-notes" || n.DOI != nil || n.Year != nil {
		t.Errorf("plain text chunk should have stem pmc_id and no metadata: %+v", n)
	}
	if n.ClusterTag == nil || *n.ClusterTag != "Gastrointestinal" {
		t.Errorf("notes tag = %v, want Gastrointestinal", n.ClusterTag)
	}
}

func TestE2E_ReingestSkipsUnchanged(t *testing.T) {
	env := newE2EEnv(t)
	first := env.ingest(t)
	second := env.ingest(t)
	if second.FilesSkipped != first.FilesIngested || second.FilesIngested != 0 {
		t.Errorf("second run ingested=%d skipped=%d; want 0 and %d", second.FilesIngested, second.FilesSkipped, first.FilesIngested)
	}
	if second.FilesFailed != 1 {
		t.Errorf("broken archive should fail again, failed=%d", second.FilesFailed)
	}

	// Removing one article retracts only its chunks.
	ctx := context.Background()
	before, _ := env.store.CountChunks(ctx)
	victim := env.corpus.Articles[0]
	own, _ := env.store.ListChunksBySource(ctx, env.paths[victim.PMCID])
	if err := env.indexer.RemoveSource(ctx, env.paths[victim.PMCID]); err != nil {
		t.Fatal(err)
	}
	after, _ := env.store.CountChunks(ctx)
	if after != before-int64(len(own)) {
		t.Errorf("chunks after remove = %d, want %d", after, before-int64(len(own)))
	}
	resp, err := env.engine.Search(ctx, &models.SearchQuery{Query: env.corpus.TestCases[0].Query, Limit: e2eSearchLimit})
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(pmcIDs(resp), victim.PMCID) {
		t.Errorf("removed article %s still searchable", victim.PMCID)
	}
}

// The streamed chunk sequence, the store and the JSONL export agree on every record.
func TestE2E_ChunkStreamMatchesExport(t *testing.T) {
	env := newE2EEnv(t)
	env.ingest(t)

	seq, err := env.assembler.Directory(env.inbox)
	if err != nil {
		t.Fatal(err)
	}
	streamed := slices.Collect(seq)
	ids := make(map[string]bool, len(streamed))
	for _, c := range streamed {
		if ids[c.ChunkID] {
			t.Errorf("duplicate chunk id %s", c.ChunkID)
		}
		ids[c.ChunkID] = true
		if len(c.ChunkID) != 32 {
			t.Errorf("chunk id %q is not 32 hex chars", c.ChunkID)
		}
	}

	stored, err := env.store.CountChunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(streamed)) != stored {
		t.Errorf("streamed %d chunks, stored %d", len(streamed), stored)
	}

	f, err := os.Open(env.jsonlPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	exported := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("export line %d: %v", exported, err)
		}
		id, _ := rec["chunk_id"].(string)
		if !ids[id] {
			t.Errorf("exported chunk %q was not in the stream", id)
		}
		if len(rec) != 8 {
			t.Errorf("exported record has %d keys, want 8", len(rec))
		}
		exported++
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if exported != len(streamed) {
		t.Errorf("exported %d lines, streamed %d chunks", exported, len(streamed))
	}
}

func pmcIDs(resp *models.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		ids = append(ids, h.Chunk.PMCID)
	}
	return ids
}
