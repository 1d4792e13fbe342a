// Package search runs exact and IVF nearest-neighbor queries over a trained index.
package search

import (
	"fmt"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/vector"
	"go.uber.org/zap"
)

// Engine answers nearest-neighbor queries. It reads indexes and never mutates them.
type Engine struct {
	logger *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output (probe sets, scan counts).
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search answers query against idx. The exact top-K is always computed and used as the
// ground truth for recall, whatever the mode.
func (e *Engine) Search(idx *models.Index, query *models.SearchQuery) (*models.SearchResult, error) {
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: nil index", models.ErrInvalidParameter)
	}

	q := vector.Coord{X: query.X, Y: query.Y}
	groundTruth := vector.Head(vector.Rank(idx.Points, q), query.TopK)

	result := &models.SearchResult{
		Mode:           query.Mode,
		TotalPoints:    len(idx.Points),
		ProbedClusters: []int{},
	}

	switch query.Mode {
	case models.ModeExact:
		result.ScannedCount = len(idx.Points)
		result.Neighbors = groundTruth
	case models.ModeApprox:
		probed := e.probe(idx.Clusters, q, query.NProbes)
		candidates := candidatesIn(idx.Points, probed)
		result.ProbedClusters = probed
		result.ScannedCount = len(candidates)
		result.Neighbors = vector.Head(vector.Rank(candidates, q), query.TopK)
	}

	result.Recall = Recall(groundTruth, result.Neighbors)
	e.logger.Debug("search",
		zap.String("mode", string(query.Mode)),
		zap.Int("top_k", query.TopK),
		zap.Ints("probed", result.ProbedClusters),
		zap.Int("scanned", result.ScannedCount),
		zap.Int("total", result.TotalPoints),
		zap.Float64("recall", result.Recall),
	)
	return result, nil
}

// GroundTruth returns the exact top-k neighbors of (x, y) by scanning every point.
func GroundTruth(points []models.Point, x, y float64, k int) []models.Neighbor {
	return vector.Head(vector.Rank(points, vector.Coord{X: x, Y: y}), k)
}

// probe returns the ids of the nProbes clusters whose centroids are nearest to q.
func (e *Engine) probe(clusters []models.Cluster, q vector.Coord, nProbes int) []int {
	ranked := vector.RankClusters(clusters, q)
	n := EffectiveProbes(nProbes, len(ranked))
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = ranked[i].ID
	}
	return ids
}

// candidatesIn returns, in input order, the points assigned to one of the probed clusters.
// Unassigned points are never candidates.
func candidatesIn(points []models.Point, probed []int) []models.Point {
	probeSet := make(map[int]struct{}, len(probed))
	for _, id := range probed {
		probeSet[id] = struct{}{}
	}
	out := make([]models.Point, 0)
	for _, p := range points {
		if !p.Assigned() {
			continue
		}
		if _, ok := probeSet[*p.ClusterID]; ok {
			out = append(out, p)
		}
	}
	return out
}
