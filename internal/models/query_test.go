package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"valid approx", &SearchQuery{Mode: ModeApprox, TopK: 5, NProbes: 2}, false},
		{"valid exact", &SearchQuery{Mode: ModeExact, TopK: 1, NProbes: 1}, false},
		{"zero top_k", &SearchQuery{Mode: ModeExact, TopK: 0, NProbes: 1}, true},
		{"zero n_probes", &SearchQuery{Mode: ModeApprox, TopK: 1, NProbes: 0}, true},
		{"negative n_probes", &SearchQuery{Mode: ModeApprox, TopK: 1, NProbes: -3}, true},
		{"unknown mode", &SearchQuery{Mode: "hnsw", TopK: 1, NProbes: 1}, true},
		{"empty mode", &SearchQuery{TopK: 1, NProbes: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestParseSearchMode(t *testing.T) {
	tests := []struct {
		in   string
		want SearchMode
		ok   bool
	}{
		{"exact", ModeExact, true},
		{"BRUTE_FORCE", ModeExact, true},
		{"approx", ModeApprox, true},
		{" IVF ", ModeApprox, true},
		{"lsh", "", false},
	}
	for _, tt := range tests {
		got, err := ParseSearchMode(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseSearchMode(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSearchMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPoint_WithClusterDoesNotAlias(t *testing.T) {
	p := Point{ID: "a", X: 1, Y: 2}
	a := p.WithCluster(1)
	b := a.WithCluster(2)
	if p.Assigned() {
		t.Error("original point should stay unassigned")
	}
	if *a.ClusterID != 1 || *b.ClusterID != 2 {
		t.Errorf("got a=%d b=%d", *a.ClusterID, *b.ClusterID)
	}
	if b.Unassigned().Assigned() {
		t.Error("Unassigned should clear the cluster")
	}
}
