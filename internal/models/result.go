package models

// SearchHit is a single keyword hit with its stored chunk.
type SearchHit struct {
	Chunk      *ChunkRecord      `json:"chunk"`
	Source     string            `json:"source"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
	Rank       int               `json:"rank"`
}

// SearchResponse is the response for a chunk search request.
type SearchResponse struct {
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Query     string       `json:"query"`
	Cluster   string       `json:"cluster,omitempty"`
}
