// Package dataset produces point sets for indexing: generated by Gemini, synthesized at
// random, or imported from files.
package dataset

import (
	"context"
	"fmt"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/pkg/utils"
)

// Coordinate domain every ingested point is clamped to.
const (
	MinCoord = 0.0
	MaxCoord = 100.0
)

// Source names reported on datasets.
const (
	SourceGemini   = "gemini"
	SourceFallback = "fallback"
	SourceFile     = "file"
)

// Source produces a point set from a free-text prompt.
type Source interface {
	Generate(ctx context.Context, prompt string) ([]models.Point, error)
	Name() string
}

// Item is one upstream record before it becomes a Point.
type Item struct {
	ID          string  `json:"id,omitempty"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// ToPoints converts items to points. Missing ids become pt-<index>, coordinates are clamped to
// [MinCoord, MaxCoord] and duplicate ids fail with ErrInvalidDataset.
func ToPoints(items []Item) ([]models.Point, error) {
	points := make([]models.Point, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		id := it.ID
		if id == "" {
			id = fmt.Sprintf("pt-%d", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate point id %q", models.ErrInvalidDataset, id)
		}
		seen[id] = struct{}{}
		points = append(points, models.Point{
			ID:          id,
			X:           utils.Clamp(it.X, MinCoord, MaxCoord),
			Y:           utils.Clamp(it.Y, MinCoord, MaxCoord),
			Label:       it.Label,
			Description: it.Description,
		})
	}
	return points, nil
}

// Validate checks id uniqueness of an already built point set.
func Validate(points []models.Point) error {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: empty point id", models.ErrInvalidDataset)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate point id %q", models.ErrInvalidDataset, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
