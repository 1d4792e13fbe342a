package search

import (
	"testing"

	"github.com/hyperjump/annlab/internal/models"
)

func neighbors(ids ...string) []models.Neighbor {
	out := make([]models.Neighbor, len(ids))
	for i, id := range ids {
		out[i] = models.Neighbor{Point: models.Point{ID: id}}
	}
	return out
}

func TestRecall(t *testing.T) {
	tests := []struct {
		name  string
		truth []models.Neighbor
		found []models.Neighbor
		want  float64
	}{
		{"empty ground truth", nil, nil, 100},
		{"empty ground truth ignores found", nil, neighbors("a"), 100},
		{"full overlap", neighbors("a", "b"), neighbors("a", "b"), 100},
		{"order does not matter", neighbors("a", "b", "c"), neighbors("c", "a", "b"), 100},
		{"half", neighbors("a", "b"), neighbors("a", "x"), 50},
		{"none", neighbors("a", "b"), neighbors("x", "y"), 0},
		{"found shorter", neighbors("a", "b", "c", "d"), neighbors("d"), 25},
		{"nothing found", neighbors("a"), nil, 0},
		{"duplicate found ids count once", neighbors("a", "b"), neighbors("a", "a"), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recall(tt.truth, tt.found); got != tt.want {
				t.Errorf("Recall = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveProbes(t *testing.T) {
	if got := EffectiveProbes(3, 10); got != 3 {
		t.Errorf("got %d", got)
	}
	if got := EffectiveProbes(12, 10); got != 10 {
		t.Errorf("got %d", got)
	}
	if got := EffectiveProbes(2, 0); got != 0 {
		t.Errorf("got %d", got)
	}
}
