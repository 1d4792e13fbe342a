package vector

import (
	"sort"

	"github.com/hyperjump/annlab/internal/models"
)

// Rank returns the points ordered by squared distance to q, nearest first.
// Equidistant points keep their input order.
func Rank(points []models.Point, q Coord) []models.Neighbor {
	ranked := make([]models.Neighbor, len(points))
	for i, p := range points {
		ranked[i] = models.Neighbor{Point: p, Distance: DistSq(Of(p), q)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	return ranked
}

// RankedCluster is a cluster id with the squared distance from its centroid to a query.
type RankedCluster struct {
	ID       int
	Distance float64
}

// RankClusters orders clusters by centroid distance to q, nearest first, keeping input order on ties.
func RankClusters(clusters []models.Cluster, q Coord) []RankedCluster {
	ranked := make([]RankedCluster, len(clusters))
	for i, c := range clusters {
		ranked[i] = RankedCluster{ID: c.ID, Distance: DistSq(Centroid(c), q)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	return ranked
}

// Head returns at most k leading neighbors. It never pads.
func Head(ranked []models.Neighbor, k int) []models.Neighbor {
	if k > len(ranked) {
		k = len(ranked)
	}
	if k < 0 {
		k = 0
	}
	return ranked[:k]
}
