// Package main is the Aura CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BonelessWater/aura/internal/chunker"
	"github.com/BonelessWater/aura/internal/cli"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/diagnose"
	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/internal/server"
	"github.com/BonelessWater/aura/internal/sink"
	"github.com/BonelessWater/aura/internal/storage"
	"github.com/BonelessWater/aura/internal/watcher"
	"github.com/BonelessWater/aura/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/aura/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When neither exists the built-in defaults are returned with an empty resolved path,
// so "aura chunk" works without any config file.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	config.LoadDotEnv()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "chunk":
		runChunk()
	case "ingest":
		runIngest()
	case "remove":
		runRemove()
	case "server":
		runServer()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("aura version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustLogger builds the logger or exits. Logs go to stderr so stdout stays usable for records.
func mustLogger(debug bool) *zap.Logger {
	logger, err := utils.NewStderrLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func mustConfig(path string) (*config.Config, string) {
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved
}

// chunkOverrides holds chunk flags; negative or empty values keep the config setting.
type chunkOverrides struct {
	window   int
	overlap  int
	overflow string
	widen    bool
}

// applyChunkOverrides copies explicit flag values onto cfg and revalidates it.
func applyChunkOverrides(cfg *config.Config, o chunkOverrides) error {
	if o.window > 0 {
		cfg.Chunking.WindowSize = o.window
	}
	if o.overlap >= 0 {
		overlap := o.overlap
		cfg.Chunking.Overlap = &overlap
	}
	if o.overflow != "" {
		cfg.Chunking.Overflow = o.overflow
	}
	if o.widen {
		cfg.Chunking.WidenChunkKey = true
	}
	return cfg.Validate()
}

// errNoInputs is returned when the arguments name no archive or text file.
var errNoInputs = errors.New("no .tar.gz or .txt files found")

// expandInputs replaces each directory argument with the inputs discovered under it.
// File arguments are kept as given, in order. Finding nothing at all is an error.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := chunker.Discover(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoInputs, strings.Join(args, ", "))
	}
	return paths, nil
}

// writeChunks publishes each record to out as soon as it is produced.
func writeChunks(ctx context.Context, out sink.Sink, records iter.Seq[*models.ChunkRecord]) (int, error) {
	n := 0
	for rec := range records {
		if err := out.Publish(ctx, rec.Source, []*models.ChunkRecord{rec}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outPath := fs.String("out", "", "write JSON lines to this file instead of stdout")
	window := fs.Int("window", 0, "window size in tokens (0 = config value)")
	overlap := fs.Int("overlap", -1, "overlap in tokens (-1 = config value)")
	overflow := fs.String("overflow", "", "long sentence policy: keep or split (empty = config value)")
	widen := fs.Bool("widen", false, "include the source path in chunk ids")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: aura chunk [flags] <file-or-directory>...")
		os.Exit(1)
	}
	cfg, _ := mustConfig(*configPath)
	if err := applyChunkOverrides(cfg, chunkOverrides{window: *window, overlap: *overlap, overflow: *overflow, widen: *widen}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	asm, err := chunker.NewFromConfig(&cfg.Chunking, cfg.Clusters, chunker.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize assembler", zap.Error(err))
	}
	paths, err := expandInputs(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	out := sink.NewJSONLSink(os.Stdout)
	if *outPath != "" {
		out, err = sink.OpenJSONLFile(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	start := time.Now()
	n, err := writeChunks(context.Background(), out, asm.Batch(paths))
	if err != nil {
		logger.Fatal("Failed to write chunks", zap.Error(err))
	}
	logger.Info("chunking finished",
		zap.Int("files", len(paths)),
		zap.Int("chunks", n),
		zap.Duration("elapsed", time.Since(start)))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = ingest directly into local storage)")
	force := fs.Bool("force", false, "re-ingest files even when unchanged since the last run")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: aura ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path, _ := filepath.Abs(fs.Arg(0))

	if *serverURL != "" {
		if err := ingestViaHTTP(*serverURL, path, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _ := mustConfig(*configPath)
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{sinks: true, force: *force})
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		run, err := components.Indexer.IndexDirectory(ctx, path)
		if run != nil {
			cli.WriteRun(os.Stdout, run)
		}
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	res, err := components.Indexer.IndexFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if res.Skipped {
		fmt.Printf("Unchanged since last ingest: %s\n", res.Path)
		return
	}
	fmt.Printf("Ingested %d chunk(s) from %s\n", res.Chunks, res.Path)
	if len(res.Collisions) > 0 {
		fmt.Printf("Warning: %d chunk id(s) overwrote chunks from other sources\n", len(res.Collisions))
	}
}

func ingestViaHTTP(serverURL, path string, w io.Writer) error {
	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return err
	}
	resp, err := http.Post(serverURL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Run    *models.IngestRun `json:"run"`
		Result *struct {
			Path    string `json:"path"`
			Chunks  int    `json:"chunks"`
			Skipped bool   `json:"skipped"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	switch {
	case out.Run != nil:
		cli.WriteRun(w, out.Run)
	case out.Result != nil && out.Result.Skipped:
		fmt.Fprintf(w, "Unchanged since last ingest: %s\n", out.Result.Path)
	case out.Result != nil:
		fmt.Fprintf(w, "Ingested %d chunk(s) from %s\n", out.Result.Chunks, out.Result.Path)
	}
	return nil
}

func runRemove() {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: aura remove [flags] <source-path>")
		os.Exit(1)
	}
	cfg, _ := mustConfig(*configPath)
	logger := mustLogger(cfg.Debug)
	defer logger.Sync()

	components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{})
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.RemoveSource(context.Background(), fs.Arg(0)); err != nil {
		fmt.Printf("Removal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Source removed: %s\n", fs.Arg(0))
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file ingestion, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath := mustConfig(*configPath)
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{sinks: true})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	idx := components.Indexer
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		watcher.Options{
			Roots:      cfg.Watch.Directories,
			Extensions: cfg.Watch.Extensions,
			Recursive:  cfg.Watch.RecursiveOrDefault(),
		},
		watcher.Callbacks{
			Ingest: func(path string) {
				if _, err := idx.IndexFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest file failed", zap.String("path", path), zap.Error(err))
				}
			},
			Remove: func(path string) {
				if err := idx.RemoveSource(context.Background(), path); err != nil {
					logger.Warn("watch remove source failed", zap.String("path", path), zap.Error(err))
				}
			},
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExisting()

	diagnoser := diagnose.NewClientFromConfig(&cfg.Inference, logger)
	srv := server.NewServer(
		components.Engine,
		idx,
		components.Storage,
		diagnoser,
		cfg,
		logger,
		server.WithWatcher(watchSvc, resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: aura search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Hits are chunks ranked by keyword relevance.
  • Use --cluster to restrict hits to one topic cluster.
  • Use --year-from and --year-to to bound the publication year.
  • Use --fuzzy to enable typo tolerance. A search with no hits is retried with fuzzy matching.

Examples:
  aura search lupus nephritis
  aura search "lupus nephritis"                        # same as above
  aura search --cluster Endocrine thyroid peroxidase
  aura search --year-from 2015 --fuzzy myastenia gravis
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchLimitDefaultFromConfig loads config at path and returns its default hit limit.
// On load failure, returns 10.
func searchLimitDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Search.DefaultLimit <= 0 {
		return 10
	}
	return cfg.Search.DefaultLimit
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "aura search lupus -limit 5"
// would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searcher runs one query, either over HTTP or against local storage.
type searcher func(q *models.SearchQuery) (*models.SearchResponse, error)

// searchWithFuzzyRetry retries a hitless non-fuzzy query once with fuzzy matching.
func searchWithFuzzyRetry(search searcher, q *models.SearchQuery) (*models.SearchResponse, error) {
	response, err := search(q)
	if err != nil {
		return nil, err
	}
	if q.Fuzzy || len(response.Hits) > 0 {
		return response, nil
	}
	retry := *q
	retry.Fuzzy = true
	if fuzzy, err := search(&retry); err == nil && len(fuzzy.Hits) > 0 {
		return fuzzy, nil
	}
	return response, nil
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaultLimit := searchLimitDefaultFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", defaultLimit, "number of results")
	cluster := fs.String("cluster", "", "only return chunks tagged with this cluster")
	yearFrom := fs.Int("year-from", 0, "earliest publication year (inclusive)")
	yearTo := fs.Int("year-to", 0, "latest publication year (inclusive)")
	fuzzyEnabled := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:    queryStr,
		Limit:    *limit,
		Cluster:  *cluster,
		Fuzzy:    *fuzzyEnabled,
		YearFrom: *yearFrom,
		YearTo:   *yearTo,
	}

	var run searcher
	if *serverURL != "" {
		// Use HTTP API when server is running (avoids Bleve/SQLite lock conflict).
		run = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return searchViaHTTP(*serverURL, q)
		}
	} else {
		cfg, _ := mustConfig(*configPathFlag)
		logger := mustLogger(cfg.Debug)
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{})
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		run = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return components.Engine.Search(context.Background(), q)
		}
	}

	response, err := searchWithFuzzyRetry(run, searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/chunks/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *cli.Status
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _ := mustConfig(*configPath)
		logger := mustLogger(cfg.Debug)
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status, err = localStatus(context.Background(), components.Storage, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// localStatus builds the status report from storage without a running server.
func localStatus(ctx context.Context, store storage.Storage, cfg *config.Config) (*cli.Status, error) {
	chunks, err := store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	sources, err := store.CountSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}
	byCluster, err := store.CountByCluster(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by cluster: %w", err)
	}
	status := &cli.Status{
		Chunks:    chunks,
		Sources:   sources,
		ByCluster: byCluster,
		Config: &cli.StatusConfig{
			WindowSize:      cfg.Chunking.WindowSize,
			Overlap:         cfg.Chunking.OverlapOrDefault(),
			Overflow:        cfg.Chunking.Overflow,
			MarkupExtension: cfg.Chunking.MarkupExtension,
			WidenChunkKey:   cfg.Chunking.WidenChunkKey,
			Clusters:        cfg.Clusters.Names(),
			DatabasePath:    cfg.Storage.DatabasePath,
			BleveIndexPath:  cfg.Storage.BleveIndexPath,
		},
	}
	if run, err := store.LatestRun(ctx); err == nil {
		status.LatestRun = run
	}
	if fp, err := storage.MeasureFootprint(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		total := fp.Total()
		status.DiskUsageBytes = &total
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: aura watch <add|remove|list> [path]")
		fmt.Println("  aura watch add <path>     Add inbox directory to watch")
		fmt.Println("  aura watch remove <path>  Remove inbox directory from watch")
		fmt.Println("  aura watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: aura watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: aura watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`aura - Literature chunking and tagging engine

Usage:
  aura chunk [flags] <path>...     Chunk archives and text files to JSON lines
  aura ingest [flags] <path>       Ingest a file or directory into the chunk store
  aura remove [flags] <path>       Remove an ingested source
  aura server [flags]              Start the HTTP server and inbox watcher
  aura search [flags] <query>      Search stored chunks
  aura status [flags]              Show store/index status
  aura watch <add|remove|list>     Manage watched inbox directories
  aura version                     Show version
  aura help                        Show this help

Chunk Flags:
  --config string    Config file path (default: /usr/local/etc/aura/config.yaml, built-in defaults if absent)
  --out string       Append JSON lines to this file instead of stdout
  --window int       Window size in tokens (default from config, 256)
  --overlap int      Overlap in tokens (default from config, 32)
  --overflow string  Long sentence policy: keep or split
  --widen            Include the source path in chunk ids

Ingest Flags:
  --config string    Config file path
  --server string    Ask a running server to ingest instead of opening local storage
  --force            Re-ingest files even when unchanged

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode; also used for the default limit)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --limit int        Number of results (default from config, or 10)
  --cluster string   Only return chunks tagged with this cluster
  --year-from int    Earliest publication year
  --year-to int      Latest publication year
  --fuzzy            Enable fuzzy matching for typo tolerance
  --output string    Output format: text, compact, or json

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  aura chunk ./inbox > chunks.jsonl
  aura chunk --window 128 --overlap 16 PMC1234567.tar.gz
  aura ingest ./inbox
  aura server
  aura search --cluster Systemic "lupus nephritis"
  aura status --output json
  aura watch add /data/inbox`)
}
