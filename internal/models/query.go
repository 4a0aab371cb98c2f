package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is wrapped by Validate failures.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery represents a chunk search request with optional filters.
type SearchQuery struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Cluster string `json:"cluster,omitempty"` // restrict hits to one cluster tag
	Fuzzy   bool   `json:"fuzzy,omitempty"`   // enable fuzzy matching for typo tolerance
	// Publication year bounds, inclusive; zero means unbounded.
	YearFrom int `json:"year_from,omitempty"`
	YearTo   int `json:"year_to,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise clamps the limit to [1, maxLimit].
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if q.YearFrom > 0 && q.YearTo > 0 && q.YearFrom > q.YearTo {
		return fmt.Errorf("%w: year_from %d is after year_to %d", ErrInvalidQuery, q.YearFrom, q.YearTo)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
