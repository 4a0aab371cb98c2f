package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/BonelessWater/aura/internal/chunker"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/diagnose"
	"github.com/BonelessWater/aura/internal/indexer"
	"github.com/BonelessWater/aura/internal/keyword"
	"github.com/BonelessWater/aura/internal/search"
	"github.com/BonelessWater/aura/internal/storage"
	"github.com/BonelessWater/aura/internal/testutil"
	"github.com/BonelessWater/aura/internal/watcher"
)

type fakeDiagnoser struct {
	err error
}

func (f *fakeDiagnoser) Diagnose(_ context.Context, text string) (*diagnose.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &diagnose.Result{Diagnosis: "Systemic", InferenceTime: 0.02}, nil
}

func (f *fakeDiagnoser) DiagnoseBatch(ctx context.Context, texts []string) (*diagnose.BatchResult, error) {
	out := &diagnose.BatchResult{TotalTime: 0.05}
	for _, t := range texts {
		r, err := f.Diagnose(ctx, t)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, *r)
	}
	return out, nil
}

func (f *fakeDiagnoser) Health(context.Context) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"status": "ok"}, nil
}

func newTestServer(t *testing.T, diag Diagnoser, opts ...Option) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Chunking.WindowSize = 16
	overlap := 4
	cfg.Chunking.Overlap = &overlap

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	asm, err := chunker.NewFromConfig(&cfg.Chunking, cfg.Clusters)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, kw, asm)
	engine := search.NewEngine(store, kw, &cfg.Search)
	if diag == nil {
		diag = &fakeDiagnoser{}
	}
	return NewServer(engine, idx, store, diag, cfg, zap.NewNop(), opts...), cfg
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func writeArticle(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "PMC7.tar.gz")
	err := testutil.WriteArticleArchive(path, "PMC7", testutil.Article{
		DOI:        "10.1/lupus",
		PMCID:      "PMC7",
		Journal:    "Lupus Science",
		Year:       "2020",
		Abstract:   []string{"Systemic lupus erythematosus with nephritis."},
		Paragraphs: []string{"Patients with lupus nephritis received mycophenolate. Remission followed."},
	})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestIngestSearchAndGetChunk(t *testing.T) {
	s, _ := newTestServer(t, nil)
	path := writeArticle(t, t.TempDir())

	rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{"path": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/v1/chunks/search", map[string]any{"query": "mycophenolate", "cluster": "Systemic"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Hits []struct {
			Chunk struct {
				ChunkID    string  `json:"chunk_id"`
				ClusterTag *string `json:"cluster_tag"`
				PMCID      string  `json:"pmc_id"`
			} `json:"chunk"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) == 0 {
		t.Fatalf("no hits: %s", rec.Body.String())
	}
	hit := resp.Hits[0].Chunk
	if hit.PMCID != "PMC7" || hit.ClusterTag == nil || *hit.ClusterTag != "Systemic" {
		t.Errorf("unexpected hit %+v", hit)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/chunks/"+hit.ChunkID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get chunk: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodGet, "/api/v1/chunks/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing chunk: got %d", rec.Code)
	}
}

func TestSearch_badRequests(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chunks/search", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/chunks/search", map[string]any{"query": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", rec.Code)
	}
}

func TestIngest_errors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	dir := t.TempDir()
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("no path: got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{"path": filepath.Join(dir, "nope.txt")}); rec.Code != http.StatusNotFound {
		t.Errorf("missing path: got %d", rec.Code)
	}
	pdf := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(pdf, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{"path": pdf}); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported file: got %d", rec.Code)
	}
	empty, err := testutil.TarGz(testutil.Member{Name: "x/readme.txt", Body: []byte("hi")})
	if err != nil {
		t.Fatal(err)
	}
	noMarkup := filepath.Join(dir, "PMC8.tar.gz")
	if err := os.WriteFile(noMarkup, empty, 0644); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{"path": noMarkup}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("archive without markup: got %d", rec.Code)
	}
}

func TestIngestDirectoryAndStatus(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	dir := t.TempDir()
	writeArticle(t, dir)

	rec := do(t, s, http.MethodPost, "/api/v1/ingest", map[string]string{"path": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest dir: %d %s", rec.Code, rec.Body.String())
	}
	run := decode(t, rec)["run"].(map[string]any)
	if run["files_ingested"].(float64) != 1 {
		t.Errorf("run = %v", run)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/runs/"+run["id"].(string), nil); rec.Code != http.StatusOK {
		t.Errorf("get run: %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	status := decode(t, rec)
	if status["chunks"].(float64) < 1 || status["sources"].(float64) != 1 {
		t.Errorf("status = %v", status)
	}
	if _, ok := status["latest_run"]; !ok {
		t.Error("status missing latest_run")
	}
	conf := status["config"].(map[string]any)
	if int(conf["window_size"].(float64)) != cfg.Chunking.WindowSize {
		t.Errorf("config window_size = %v", conf["window_size"])
	}

	rec = do(t, s, http.MethodGet, "/api/v1/sources", nil)
	if rec.Code != http.StatusOK || len(decode(t, rec)["sources"].([]any)) != 1 {
		t.Errorf("sources: %d %s", rec.Code, rec.Body.String())
	}

	path := filepath.Join(dir, "PMC7.tar.gz")
	if rec := do(t, s, http.MethodDelete, "/api/v1/sources?path="+path, nil); rec.Code != http.StatusOK {
		t.Errorf("remove source: %d %s", rec.Code, rec.Body.String())
	}
	status = decode(t, do(t, s, http.MethodGet, "/api/v1/status", nil))
	if status["chunks"].(float64) != 0 {
		t.Errorf("chunks after remove = %v", status["chunks"])
	}
}

func TestDiagnose(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/diagnose", map[string]string{"text": "malar rash"})
	if rec.Code != http.StatusOK {
		t.Fatalf("diagnose: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["diagnosis"] != "Systemic" {
		t.Errorf("diagnose body = %v", body)
	}
	if _, ok := body["inference_time"]; !ok {
		t.Error("missing inference_time")
	}

	rec = do(t, s, http.MethodPost, "/diagnose/batch", map[string][]string{"texts": {"a", "b"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: %d %s", rec.Code, rec.Body.String())
	}
	batch := decode(t, rec)
	if len(batch["results"].([]any)) != 2 || batch["total_time"] == nil {
		t.Errorf("batch = %v", batch)
	}

	if rec := do(t, s, http.MethodPost, "/diagnose", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty text: got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/diagnose/batch", map[string][]string{"texts": {}}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch: got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/diagnose/health", nil); rec.Code != http.StatusOK {
		t.Errorf("diagnose health: got %d", rec.Code)
	}
}

func TestDiagnose_upstreamFailures(t *testing.T) {
	unavailable, _ := newTestServer(t, &fakeDiagnoser{err: errors.Join(diagnose.ErrUnavailable, errors.New("dial tcp: refused"))})
	rec := do(t, unavailable, http.MethodPost, "/diagnose", map[string]string{"text": "x"})
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec)["status"] != "unavailable" {
		t.Errorf("unavailable: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, unavailable, http.MethodGet, "/diagnose/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health unavailable: got %d", rec.Code)
	}

	failing, _ := newTestServer(t, &fakeDiagnoser{err: &diagnose.UpstreamError{StatusCode: 500, Body: "boom"}})
	rec = do(t, failing, http.MethodPost, "/diagnose/batch", map[string][]string{"texts": {"x"}})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("upstream error: got %d", rec.Code)
	}
}

func TestWatchDirectories(t *testing.T) {
	notEnabled, _ := newTestServer(t, nil)
	if rec := do(t, notEnabled, http.MethodGet, "/api/v1/watch/directories", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("watch disabled: got %d", rec.Code)
	}

	w := watcher.New(watcher.Options{Extensions: []string{".tar.gz", ".txt"}, Recursive: true}, watcher.Callbacks{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	s, _ := newTestServer(t, nil, WithWatcher(w, configPath))

	inbox := t.TempDir()
	rec := do(t, s, http.MethodPost, "/api/v1/watch/directories", map[string]any{"path": inbox, "sync": false})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("saved config: %v", err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != inbox {
		t.Errorf("persisted directories = %v", saved.Watch.Directories)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/watch/directories", nil)
	if dirs := decode(t, rec)["directories"].([]any); len(dirs) != 1 {
		t.Errorf("directories = %v", dirs)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/watch/directories?path="+inbox, nil); rec.Code != http.StatusOK {
		t.Errorf("remove: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/watch/directories", map[string]any{"path": filepath.Join(inbox, "nope")}); rec.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d", rec.Code)
	}
}

func TestWatchDirectories_persistsOnlyDirectories(t *testing.T) {
	t.Setenv(config.EnvRedisPassword, "s3cret-from-env")
	t.Setenv(config.EnvS3Bucket, "bronze-from-env")

	w := watcher.New(watcher.Options{Extensions: []string{".tar.gz"}, Recursive: true}, watcher.Callbacks{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	s, cfg := newTestServer(t, nil, WithWatcher(w, configPath))
	if cfg.Inference.RedisPassword != "s3cret-from-env" {
		t.Fatalf("env overlay not applied: %q", cfg.Inference.RedisPassword)
	}

	inbox := t.TempDir()
	if rec := do(t, s, http.MethodPost, "/api/v1/watch/directories", map[string]any{"path": inbox}); rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, leaked := range []string{"s3cret-from-env", "bronze-from-env", "database_path", "window_size"} {
		if bytes.Contains(data, []byte(leaked)) {
			t.Errorf("saved config contains %q:\n%s", leaked, data)
		}
	}

	t.Setenv(config.EnvRedisPassword, "")
	t.Setenv(config.EnvS3Bucket, "")
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Server.Port != 9123 {
		t.Errorf("port = %d, want 9123 kept from the file", saved.Server.Port)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != inbox {
		t.Errorf("persisted directories = %v", saved.Watch.Directories)
	}
}
