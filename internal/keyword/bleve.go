// Package keyword provides Bleve implementation of LabelSearcher.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/annlab/internal/models"
)

const defaultFuzziness = 1

// labelDoc is the indexed form of a point.
type labelDoc struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// LabelIndex implements LabelSearcher with an in-memory Bleve index.
type LabelIndex struct {
	index bleve.Index
}

// NewLabelIndex creates an empty in-memory label index.
func NewLabelIndex() (*LabelIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "apple" matches "Apple".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("label", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	im.AddDocumentMapping("point", docMapping)
	im.DefaultType = "point"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &LabelIndex{index: index}, nil
}

// Index adds points to the index in one batch. Points already present are overwritten.
func (l *LabelIndex) Index(ctx context.Context, points []models.Point) error {
	batch := l.index.NewBatch()
	for _, p := range points {
		if err := batch.Index(p.ID, labelDoc{Label: p.Label, Description: p.Description}); err != nil {
			return fmt.Errorf("index point %s: %w", p.ID, err)
		}
	}
	return l.index.Batch(batch)
}

// Search returns up to limit point ids ordered by relevance. Empty text returns no hits.
func (l *LabelIndex) Search(ctx context.Context, text string, limit int, opts *SearchOptions) ([]*LabelResult, error) {
	terms := tokenize(text)
	if len(terms) == 0 || limit < 1 {
		return nil, nil
	}

	var q blevequery.Query
	if opts != nil && opts.FuzzyEnabled {
		fuzziness := opts.Fuzziness
		if fuzziness <= 0 {
			fuzziness = defaultFuzziness
		}
		q = fuzzyQuery(terms, fuzziness)
	} else {
		q = bleve.NewMatchQuery(text)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*LabelResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &LabelResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed points.
func (l *LabelIndex) DocCount() (uint64, error) {
	return l.index.DocCount()
}

// Close releases the index.
func (l *LabelIndex) Close() error {
	return l.index.Close()
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// fuzzyQuery ORs one FuzzyQuery per term over both fields.
func fuzzyQuery(terms []string, fuzziness int) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms)*2)
	for _, term := range terms {
		for _, field := range []string{"label", "description"} {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(fuzziness)
			fq.SetField(field)
			queries = append(queries, fq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}
