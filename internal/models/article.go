// Package models defines core data structures for articles, chunks, and ingestion records.
package models

// ArticleRecord holds the metadata and text recovered from one article's markup.
// Optional fields are nil when the markup does not carry them.
type ArticleRecord struct {
	DOI      *string `json:"doi"`
	PMCID    *string `json:"pmc_id"`
	Journal  *string `json:"journal"`
	Year     *int    `json:"year"`
	Title    *string `json:"title"`
	Abstract string  `json:"abstract"`
	Body     string  `json:"body"`
}

// StringPtr returns a pointer to s, or nil if s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Deref returns *s, or "" when s is nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
