package search

import "github.com/hyperjump/annlab/internal/models"

// ProcessQuery validates the query. Parameters below 1 fail; nothing is defaulted here.
func ProcessQuery(query *models.SearchQuery) error {
	if query == nil {
		return models.ErrInvalidParameter
	}
	return query.Validate()
}

// EffectiveProbes clamps nProbes to the number of clusters. Probing more cells than exist
// means probing all of them.
func EffectiveProbes(nProbes, clusters int) int {
	if nProbes > clusters {
		return clusters
	}
	return nProbes
}
