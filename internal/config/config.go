// Package config provides configuration loading and structs for the Aura engine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Clusters  Clusters        `yaml:"clusters"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Inference InferenceConfig `yaml:"inference"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the chunk database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// ChunkingConfig holds segmenter and assembler settings.
type ChunkingConfig struct {
	WindowSize      int    `yaml:"window_size"`
	Overlap         *int   `yaml:"overlap"`
	Overflow        string `yaml:"overflow"`         // "keep" or "split"
	MarkupExtension string `yaml:"markup_extension"` // archive member suffix, e.g. ".nxml"
	WidenChunkKey   bool   `yaml:"widen_chunk_key"`  // include the source path in chunk ids
}

// OverlapOrDefault returns the configured overlap, or DefaultOverlap when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return DefaultOverlap
}

// SearchConfig holds keyword search settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// SinksConfig holds the export targets chunk batches are published to.
type SinksConfig struct {
	JSONLPath string      `yaml:"jsonl_path"`
	Kafka     KafkaConfig `yaml:"kafka"`
	S3        S3Config    `yaml:"s3"`
}

// KafkaConfig holds Kafka producer settings. Disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// S3Config holds bronze-tier object storage settings. Disabled when Bucket is empty.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// KeyBySource adds a hash of the source path to object keys so equal file
	// names from different directories get separate objects. Implied by
	// chunking.widen_chunk_key.
	KeyBySource bool `yaml:"key_by_source"`
}

// InferenceConfig holds settings for the remote classification server.
type InferenceConfig struct {
	UpstreamURL    string `yaml:"upstream_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheTTL       string `yaml:"cache_ttl"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
}

// Timeout returns the upstream request timeout.
func (c *InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTLDuration parses CacheTTL; an empty or invalid value disables expiry.
func (c *InferenceConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// Load reads and parses the config file at path, expands paths, applies defaults,
// and overlays environment variables. Returns an error if the file cannot be read
// or parsed, or if the result is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Sinks.JSONLPath != "" {
		cfg.Sinks.JSONLPath = expandPath(cfg.Sinks.JSONLPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied and environment overrides read.
// Used when no config file exists.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Chunking.WindowSize <= 0 {
		return fmt.Errorf("invalid config: chunking.window_size must be positive, got %d", c.Chunking.WindowSize)
	}
	overlap := c.Chunking.OverlapOrDefault()
	if overlap < 0 || overlap >= c.Chunking.WindowSize {
		return fmt.Errorf("invalid config: chunking.overlap must be in [0, %d), got %d", c.Chunking.WindowSize, overlap)
	}
	switch c.Chunking.Overflow {
	case OverflowKeep, OverflowSplit:
	default:
		return fmt.Errorf("invalid config: chunking.overflow must be %q or %q, got %q", OverflowKeep, OverflowSplit, c.Chunking.Overflow)
	}
	if !strings.HasPrefix(c.Chunking.MarkupExtension, ".") {
		return fmt.Errorf("invalid config: chunking.markup_extension must start with '.', got %q", c.Chunking.MarkupExtension)
	}
	if err := c.Clusters.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.Sinks.Kafka.Brokers) > 0 && c.Sinks.Kafka.Topic == "" {
		return fmt.Errorf("invalid config: sinks.kafka.topic is required when brokers are set")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveWatchDirectories rewrites only watch.directories in the config file at path,
// leaving every other key as written. Environment overrides and defaults held by a
// loaded Config are never written back. A missing file is created with just that key.
func SaveWatchDirectories(path string, dirs []string) error {
	var doc yaml.Node
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to update config: top level is not a mapping")
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, d := range dirs {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: d})
	}
	watch := mappingValue(root, "watch")
	if watch == nil || watch.Kind != yaml.MappingNode {
		watch = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(root, "watch", watch)
	}
	setMappingValue(watch, "directories", seq)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
