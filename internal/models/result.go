package models

// Neighbor is a ranked point with its squared distance to the query.
type Neighbor struct {
	Point    Point   `json:"point"`
	Distance float64 `json:"distance"`
}

// SearchResult is the fully derived answer to one SearchQuery.
type SearchResult struct {
	Mode      SearchMode `json:"mode"`
	Neighbors []Neighbor `json:"neighbors"`
	// ScannedCount is the number of points whose distance was computed for the answer.
	ScannedCount   int     `json:"scanned_count"`
	TotalPoints    int     `json:"total_points"`
	ProbedClusters []int   `json:"probed_clusters"`
	Recall         float64 `json:"recall"`
}

// IDs returns the neighbor point ids in rank order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Neighbors))
	for i, n := range r.Neighbors {
		ids[i] = n.Point.ID
	}
	return ids
}
