// Package cli provides output helpers for the aura command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/BonelessWater/aura/internal/models"
	"github.com/BonelessWater/aura/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one hit per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search hits to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, hit := range response.Hits {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n",
				hit.Rank, hit.Score, hit.Chunk.ChunkID, clusterLabel(hit.Chunk), TruncateWords(hit.Chunk.Text, 12))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d chunks in %dms", response.Total, response.QueryTime)
	if response.Cluster != "" {
		fmt.Fprintf(w, " (cluster %s)", response.Cluster)
	}
	fmt.Fprint(w, "\n\n")
	for _, hit := range response.Hits {
		writeOneHit(w, hit)
	}
}

func writeOneHit(w io.Writer, hit *models.SearchHit) {
	c := hit.Chunk
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Cluster: %s\n", hit.Rank, hit.Score, clusterLabel(c))
	fmt.Fprintf(w, "ID: %s (%s)\n", c.ChunkID, c.Section)
	if c.DOI != nil {
		fmt.Fprintf(w, "DOI: %s\n", *c.DOI)
	}
	if c.Journal != nil || c.Year != nil {
		fmt.Fprintf(w, "Published: %s\n", published(c))
	}
	if hit.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", hit.Source)
	}
	text := hit.Highlights["text"]
	if text == "" {
		text = c.Text
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(text, 240))
	fmt.Fprintln(w)
}

func clusterLabel(c *models.ChunkRecord) string {
	if c.ClusterTag == nil {
		return "-"
	}
	return *c.ClusterTag
}

func published(c *models.ChunkRecord) string {
	var parts []string
	if c.Journal != nil {
		parts = append(parts, *c.Journal)
	}
	if c.Year != nil {
		parts = append(parts, fmt.Sprintf("%d", *c.Year))
	}
	return strings.Join(parts, ", ")
}

// Status is the shape of GET /api/v1/status.
type Status struct {
	Chunks         int64             `json:"chunks"`
	Sources        int64             `json:"sources"`
	ByCluster      map[string]int64  `json:"by_cluster"`
	LatestRun      *models.IngestRun `json:"latest_run,omitempty"`
	DiskUsageBytes *int64            `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig     `json:"config,omitempty"`
}

// StatusConfig holds the configuration echoed by status.
type StatusConfig struct {
	WindowSize      int      `json:"window_size"`
	Overlap         int      `json:"overlap"`
	Overflow        string   `json:"overflow"`
	MarkupExtension string   `json:"markup_extension"`
	WidenChunkKey   bool     `json:"widen_chunk_key"`
	Clusters        []string `json:"clusters"`
	DatabasePath    string   `json:"database_path,omitempty"`
	BleveIndexPath  string   `json:"bleve_index_path,omitempty"`
}

// WriteStatus writes status to w as text or JSON. Compact is treated as text.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "sources:            %d   # ingested input files\n", status.Sources)
	fmt.Fprintf(w, "chunks:             %d   # stored chunk records\n", status.Chunks)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + keyword index on disk\n", *status.DiskUsageBytes)
	}
	if len(status.ByCluster) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# chunks by cluster")
		names := make([]string, 0, len(status.ByCluster))
		for name := range status.ByCluster {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%-28s %d\n", name+":", status.ByCluster[name])
		}
	}
	if status.LatestRun != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# latest run")
		WriteRun(w, status.LatestRun)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "window_size:        %d\n", c.WindowSize)
		fmt.Fprintf(w, "overlap:            %d\n", c.Overlap)
		fmt.Fprintf(w, "overflow:           %s\n", c.Overflow)
		fmt.Fprintf(w, "markup_extension:   %s\n", c.MarkupExtension)
		fmt.Fprintf(w, "widen_chunk_key:    %t\n", c.WidenChunkKey)
		if len(c.Clusters) > 0 {
			fmt.Fprintf(w, "clusters:           %s\n", strings.Join(c.Clusters, ", "))
		}
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
		if c.BleveIndexPath != "" {
			fmt.Fprintf(w, "bleve_index_path:   %s\n", c.BleveIndexPath)
		}
	}
	return nil
}

// WriteRun prints an ingestion run summary.
func WriteRun(w io.Writer, run *models.IngestRun) {
	fmt.Fprintf(w, "run:                %s\n", run.ID)
	fmt.Fprintf(w, "root:               %s\n", run.Root)
	fmt.Fprintf(w, "files:              %d seen, %d ingested, %d skipped, %d failed\n",
		run.FilesSeen, run.FilesIngested, run.FilesSkipped, run.FilesFailed)
	fmt.Fprintf(w, "chunks:             %d\n", run.Chunks)
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "duration:           %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
