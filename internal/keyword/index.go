// Package keyword provides label search over dataset points.
package keyword

import (
	"context"

	"github.com/hyperjump/annlab/internal/models"
)

// SearchOptions optional parameters for label search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// LabelSearcher defines label lookup operations over a point set.
type LabelSearcher interface {
	Index(ctx context.Context, points []models.Point) error
	Search(ctx context.Context, text string, limit int, opts *SearchOptions) ([]*LabelResult, error)
	DocCount() (uint64, error)
	Close() error
}

// LabelResult is a single label search hit.
type LabelResult struct {
	ID    string
	Score float64
}
