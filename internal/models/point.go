// Package models defines core data structures for points, clusters, indexes, queries, and search results.
package models

import "time"

// Point is a single 2D item. ClusterID is nil until an index has been trained over the point.
type Point struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Label       string  `json:"label,omitempty"`
	Description string  `json:"description,omitempty"`
	ClusterID   *int    `json:"cluster_id,omitempty"`
}

// Assigned reports whether the point carries a cluster assignment.
func (p Point) Assigned() bool {
	return p.ClusterID != nil
}

// WithCluster returns a copy of p assigned to cluster id.
func (p Point) WithCluster(id int) Point {
	c := id
	p.ClusterID = &c
	return p
}

// Unassigned returns a copy of p without a cluster assignment.
func (p Point) Unassigned() Point {
	p.ClusterID = nil
	return p
}

// Cluster is one IVF cell. Color is cosmetic.
type Cluster struct {
	ID    int     `json:"id"`
	CX    float64 `json:"cx"`
	CY    float64 `json:"cy"`
	Color string  `json:"color"`
	Size  int     `json:"size"`
	// Empty marks a cluster that received no points in the final assignment step.
	// Its centroid stays where it was last placed.
	Empty bool `json:"empty"`
}

// Index is the product of training: annotated points plus clusters with dense ids in [0, K).
type Index struct {
	Points     []Point   `json:"points"`
	Clusters   []Cluster `json:"clusters"`
	K          int       `json:"k"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	Seed       int64     `json:"seed"`
}

// Trained reports whether the index has clusters.
func (idx *Index) Trained() bool {
	return idx != nil && len(idx.Clusters) > 0
}

// EmptyClusters returns the ids of clusters with no assigned points.
func (idx *Index) EmptyClusters() []int {
	var out []int
	for _, c := range idx.Clusters {
		if c.Empty {
			out = append(out, c.ID)
		}
	}
	return out
}

// Dataset is a stored set of points with its provenance.
type Dataset struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt,omitempty"`
	Source string `json:"source"`

	// PointCount is set on listings, where Points is left empty.
	PointCount int       `json:"point_count"`
	Points     []Point   `json:"points,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
