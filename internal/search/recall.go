package search

import "github.com/hyperjump/annlab/internal/models"

// Recall returns the percentage of groundTruth ids present in found. It is an unordered set
// overlap: the internal order of found does not matter. An empty ground truth has nothing to
// miss and scores 100.
func Recall(groundTruth, found []models.Neighbor) float64 {
	if len(groundTruth) == 0 {
		return 100
	}
	truth := make(map[string]struct{}, len(groundTruth))
	for _, n := range groundTruth {
		truth[n.Point.ID] = struct{}{}
	}
	overlap := 0
	seen := make(map[string]struct{}, len(found))
	for _, n := range found {
		if _, dup := seen[n.Point.ID]; dup {
			continue
		}
		seen[n.Point.ID] = struct{}{}
		if _, ok := truth[n.Point.ID]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(truth)) * 100
}
