package models

import (
	"fmt"
	"strings"
)

// SearchMode selects brute-force or IVF probing.
type SearchMode string

const (
	// ModeExact scans every point.
	ModeExact SearchMode = "exact"
	// ModeApprox scans only the points of the nearest NProbes clusters.
	ModeApprox SearchMode = "approx"
)

// ParseSearchMode accepts "exact"/"brute_force" and "approx"/"ivf" in any case.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "brute_force", "brute-force", "flat":
		return ModeExact, nil
	case "approx", "ivf":
		return ModeApprox, nil
	default:
		return "", fmt.Errorf("%w: unknown search mode %q", ErrInvalidParameter, s)
	}
}

// SearchQuery is a single nearest-neighbor request.
type SearchQuery struct {
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Mode    SearchMode `json:"mode"`
	TopK    int        `json:"top_k"`
	NProbes int        `json:"n_probes"`
}

// Validate rejects parameters below 1 and unknown modes. It does not apply defaults.
func (q *SearchQuery) Validate() error {
	if q.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidParameter, q.TopK)
	}
	if q.NProbes < 1 {
		return fmt.Errorf("%w: n_probes must be >= 1, got %d", ErrInvalidParameter, q.NProbes)
	}
	switch q.Mode {
	case ModeExact, ModeApprox:
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidParameter, q.Mode)
	}
	return nil
}
