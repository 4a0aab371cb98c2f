package config

// Chunking defaults.
const (
	DefaultWindowSize      = 256
	DefaultOverlap         = 32
	DefaultMarkupExtension = ".nxml"

	OverflowKeep  = "keep"
	OverflowSplit = "split"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/aura/data/db/chunks.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/aura/data/indices/bleve"
	}
	if cfg.Chunking.WindowSize == 0 {
		cfg.Chunking.WindowSize = DefaultWindowSize
	}
	if cfg.Chunking.Overlap == nil {
		o := DefaultOverlap
		cfg.Chunking.Overlap = &o
	}
	if cfg.Chunking.Overflow == "" {
		cfg.Chunking.Overflow = OverflowKeep
	}
	if cfg.Chunking.MarkupExtension == "" {
		cfg.Chunking.MarkupExtension = DefaultMarkupExtension
	}
	// An explicit empty mapping disables tagging; only an absent key gets the defaults.
	if cfg.Clusters == nil {
		cfg.Clusters = DefaultClusters()
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".tar.gz", ".txt"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Sinks.Kafka.ClientID == "" {
		cfg.Sinks.Kafka.ClientID = "aura-chunker"
	}
	if cfg.Sinks.S3.Prefix == "" {
		cfg.Sinks.S3.Prefix = "bronze/literature"
	}
	if cfg.Sinks.S3.Region == "" {
		cfg.Sinks.S3.Region = "us-east-1"
	}
	if cfg.Inference.UpstreamURL == "" {
		cfg.Inference.UpstreamURL = "http://localhost:8000"
	}
	if cfg.Inference.TimeoutSeconds == 0 {
		cfg.Inference.TimeoutSeconds = 30
	}
	if cfg.Inference.CacheTTL == "" {
		cfg.Inference.CacheTTL = "24h"
	}
}

// DefaultClusters returns the built-in autoimmune topic lexicons, in tie-break order.
func DefaultClusters() Clusters {
	return Clusters{
		{Name: "Systemic", Keywords: []string{
			"lupus", "systemic lupus erythematosus", "systemic sclerosis", "scleroderma", "sjogren", "sjögren",
			"vasculitis", "antinuclear antibod", "anti-dsdna", "mixed connective tissue",
		}},
		{Name: "Musculoskeletal/Rheumatic", Keywords: []string{
			"rheumatoid arthritis", "ankylosing spondylitis", "psoriatic arthritis", "spondyloarthritis",
			"synovitis", "rheumatoid factor", "anti-ccp", "polymyalgia", "myositis", "joint erosion",
		}},
		{Name: "Gastrointestinal", Keywords: []string{
			"crohn", "ulcerative colitis", "inflammatory bowel disease", "ibd", "celiac", "coeliac",
			"autoimmune hepatitis", "primary biliary", "sclerosing cholangitis", "calprotectin",
		}},
		{Name: "Endocrine", Keywords: []string{
			"type 1 diabetes", "t1d", "hashimoto", "graves", "thyroiditis", "addison",
			"thyroid peroxidase", "anti-tpo", "islet autoantibod", "insulitis",
		}},
		{Name: "Neurological", Keywords: []string{
			"multiple sclerosis", "myasthenia gravis", "guillain-barre", "guillain-barré",
			"neuromyelitis optica", "demyelinat", "encephalitis", "cidp", "aquaporin-4",
		}},
		{Name: "Dermatological", Keywords: []string{
			"psoriasis", "vitiligo", "alopecia areata", "pemphigus", "pemphigoid",
			"dermatomyositis", "cutaneous lupus", "hidradenitis",
		}},
	}
}
