package models

import "time"

// Section labels used on chunk records.
const (
	SectionAbstract   = "abstract"
	SectionBodyPrefix = "body_"
)

// ChunkRecord is one windowed piece of an article, ready for the embedding service.
// The JSON keys are the downstream contract and must not change.
type ChunkRecord struct {
	ChunkID    string  `json:"chunk_id"`
	DOI        *string `json:"doi"`
	Journal    *string `json:"journal"`
	Year       *int    `json:"year"`
	Section    string  `json:"section"`
	ClusterTag *string `json:"cluster_tag"`
	Text       string  `json:"text"`
	PMCID      string  `json:"pmc_id"`

	// Source is the absolute path of the file the chunk came from.
	Source string `json:"-"`
	// Index is the zero-based window position within the source.
	Index int `json:"-"`
}

// SourceRecord is the ingestion ledger entry for one input file.
type SourceRecord struct {
	Path       string    `json:"path"`
	DocKey     string    `json:"doc_key"`
	ModTime    int64     `json:"mtime"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	RunID      string    `json:"run_id,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// IngestRun summarises one directory ingestion.
type IngestRun struct {
	ID            string     `json:"id"`
	Root          string     `json:"root"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	FilesSeen     int        `json:"files_seen"`
	FilesIngested int        `json:"files_ingested"`
	FilesSkipped  int        `json:"files_skipped"`
	FilesFailed   int        `json:"files_failed"`
	Chunks        int        `json:"chunks"`
}
