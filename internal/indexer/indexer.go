// Package indexer builds IVF indexes over 2D points with Lloyd's k-means.
package indexer

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/vector"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds Lloyd's iterations. It is a convergence bound, not a retry count.
const DefaultMaxIterations = 20

// DefaultMaxClusters is the largest k a Builder accepts unless WithMaxClusters says otherwise.
const DefaultMaxClusters = 1024

const unassigned = -1

// Palette holds the display colors cycled over cluster ids.
var Palette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#06b6d4", // cyan
	"#3b82f6", // blue
	"#a855f7", // purple
	"#ec4899", // pink
}

// ColorFor returns the palette color of cluster id.
func ColorFor(id int) string {
	return Palette[id%len(Palette)]
}

// Bounds is the rectangle initial centroids are drawn from.
type Bounds struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MinY float64 `yaml:"min_y" json:"min_y"`
	MaxY float64 `yaml:"max_y" json:"max_y"`
}

// DefaultBounds is the [0,100]x[0,100] domain of generated datasets.
func DefaultBounds() Bounds {
	return Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}
}

// Builder trains IVF indexes. A Builder holds no per-index state and may be reused.
type Builder struct {
	maxIterations int
	maxClusters   int
	bounds        Bounds
	seed          *int64
	logger        *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for debug output (iterations, dead clusters).
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSeed fixes the seed of centroid initialization so builds are reproducible.
func WithSeed(seed int64) BuilderOption {
	return func(b *Builder) { b.seed = &seed }
}

// WithMaxIterations overrides DefaultMaxIterations. Values below 1 are ignored.
func WithMaxIterations(n int) BuilderOption {
	return func(b *Builder) {
		if n >= 1 {
			b.maxIterations = n
		}
	}
}

// WithMaxClusters overrides DefaultMaxClusters. Values below 1 are ignored.
func WithMaxClusters(n int) BuilderOption {
	return func(b *Builder) {
		if n >= 1 {
			b.maxClusters = n
		}
	}
}

// WithBounds sets the initialization domain. Degenerate bounds are ignored.
func WithBounds(bounds Bounds) BuilderOption {
	return func(b *Builder) {
		if bounds.MaxX >= bounds.MinX && bounds.MaxY >= bounds.MinY {
			b.bounds = bounds
		}
	}
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		maxIterations: DefaultMaxIterations,
		maxClusters:   DefaultMaxClusters,
		bounds:        DefaultBounds(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build trains a k-cluster index over points. Centroids start uniformly at random inside the
// builder bounds. Incoming cluster assignments are ignored; the input slice is not modified.
func (b *Builder) Build(points []models.Point, k int) (*models.Index, error) {
	if err := b.checkClusters(k); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return emptyIndex(), nil
	}
	seed := b.nextSeed()
	rng := rand.New(rand.NewSource(seed))
	centroids := make([]vector.Coord, k)
	for i := range centroids {
		centroids[i] = vector.Coord{
			X: b.bounds.MinX + rng.Float64()*(b.bounds.MaxX-b.bounds.MinX),
			Y: b.bounds.MinY + rng.Float64()*(b.bounds.MaxY-b.bounds.MinY),
		}
	}
	idx := b.train(points, newClusters(centroids), freshAssignment(len(points)))
	idx.Seed = seed
	return idx, nil
}

// BuildFromCentroids trains an index starting from the given centroids instead of random ones.
// Cluster i starts at centroids[i].
func (b *Builder) BuildFromCentroids(points []models.Point, centroids []vector.Coord) (*models.Index, error) {
	if err := b.checkClusters(len(centroids)); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return emptyIndex(), nil
	}
	return b.train(points, newClusters(centroids), freshAssignment(len(points))), nil
}

// Retrain resumes Lloyd's iterations from a trained index: its centroids seed the clusters and
// its point assignments count as the previous assignment. A converged index comes back
// unchanged after a single iteration.
func (b *Builder) Retrain(idx *models.Index) (*models.Index, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: nil index", models.ErrInvalidParameter)
	}
	if len(idx.Points) == 0 {
		return emptyIndex(), nil
	}
	if len(idx.Clusters) == 0 {
		return nil, fmt.Errorf("%w: index has not been trained", models.ErrInvalidParameter)
	}
	clusters := make([]models.Cluster, len(idx.Clusters))
	for i, c := range idx.Clusters {
		if c.ID != i {
			return nil, fmt.Errorf("%w: cluster ids are not dense (position %d has id %d)", models.ErrInvalidParameter, i, c.ID)
		}
		clusters[i] = c
	}
	prev := make([]int, len(idx.Points))
	for i, p := range idx.Points {
		prev[i] = unassigned
		if p.Assigned() {
			if *p.ClusterID < 0 || *p.ClusterID >= len(clusters) {
				return nil, fmt.Errorf("%w: point %s refers to unknown cluster %d", models.ErrInvalidParameter, p.ID, *p.ClusterID)
			}
			prev[i] = *p.ClusterID
		}
	}
	out := b.train(idx.Points, clusters, prev)
	out.Seed = idx.Seed
	return out, nil
}

func (b *Builder) train(points []models.Point, clusters []models.Cluster, assign []int) *models.Index {
	iterations := 0
	converged := false
	for iterations < b.maxIterations {
		iterations++
		changed := assignPoints(points, clusters, assign)
		updateCentroids(points, clusters, assign)
		b.logger.Debug("kmeans iteration",
			zap.Int("iteration", iterations),
			zap.Bool("changed", changed),
			zap.Int("k", len(clusters)),
		)
		if !changed {
			converged = true
			break
		}
	}

	annotated := make([]models.Point, len(points))
	for i := range clusters {
		clusters[i].Size = 0
	}
	for i, p := range points {
		annotated[i] = p.WithCluster(assign[i])
		clusters[assign[i]].Size++
	}
	for i := range clusters {
		clusters[i].Empty = clusters[i].Size == 0
		if clusters[i].Empty {
			b.logger.Debug("dead cluster", zap.Int("cluster", clusters[i].ID),
				zap.Float64("cx", clusters[i].CX), zap.Float64("cy", clusters[i].CY))
		}
	}
	return &models.Index{
		Points:     annotated,
		Clusters:   clusters,
		K:          len(clusters),
		Iterations: iterations,
		Converged:  converged,
	}
}

// assignPoints moves every point to its nearest centroid and reports whether any assignment
// changed. Ties go to the lowest cluster id.
func assignPoints(points []models.Point, clusters []models.Cluster, assign []int) bool {
	changed := false
	for i, p := range points {
		pc := vector.Of(p)
		best := unassigned
		bestDist := 0.0
		for _, c := range clusters {
			d := vector.DistSq(pc, vector.Centroid(c))
			if best == unassigned || d < bestDist {
				best = c.ID
				bestDist = d
			}
		}
		if assign[i] != best {
			changed = true
			assign[i] = best
		}
	}
	return changed
}

// updateCentroids moves each non-empty cluster to the mean of its points. Empty clusters stay put.
func updateCentroids(points []models.Point, clusters []models.Cluster, assign []int) {
	sumX := make([]float64, len(clusters))
	sumY := make([]float64, len(clusters))
	count := make([]int, len(clusters))
	for i, p := range points {
		c := assign[i]
		sumX[c] += p.X
		sumY[c] += p.Y
		count[c]++
	}
	for i := range clusters {
		if count[i] == 0 {
			continue
		}
		clusters[i].CX = sumX[i] / float64(count[i])
		clusters[i].CY = sumY[i] / float64(count[i])
	}
}

func (b *Builder) checkClusters(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", models.ErrInvalidParameter, k)
	}
	if k > b.maxClusters {
		return fmt.Errorf("%w: k must be <= %d, got %d", models.ErrInvalidParameter, b.maxClusters, k)
	}
	return nil
}

func (b *Builder) nextSeed() int64 {
	if b.seed != nil {
		return *b.seed
	}
	return time.Now().UnixNano()
}

func newClusters(centroids []vector.Coord) []models.Cluster {
	clusters := make([]models.Cluster, len(centroids))
	for i, c := range centroids {
		clusters[i] = models.Cluster{ID: i, CX: c.X, CY: c.Y, Color: ColorFor(i)}
	}
	return clusters
}

func freshAssignment(n int) []int {
	assign := make([]int, n)
	for i := range assign {
		assign[i] = unassigned
	}
	return assign
}

func emptyIndex() *models.Index {
	return &models.Index{
		Points:    []models.Point{},
		Clusters:  []models.Cluster{},
		Converged: true,
	}
}
