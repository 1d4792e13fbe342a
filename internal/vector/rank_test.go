package vector

import (
	"testing"

	"github.com/hyperjump/annlab/internal/models"
)

func TestDistSq(t *testing.T) {
	if d := DistSq(Coord{0, 0}, Coord{3, 4}); d != 25 {
		t.Errorf("DistSq = %v, want 25", d)
	}
	if d := DistSq(Coord{1.5, -2}, Coord{1.5, -2}); d != 0 {
		t.Errorf("DistSq same point = %v", d)
	}
}

func TestRank_OrdersNearestFirst(t *testing.T) {
	points := []models.Point{
		{ID: "far", X: 10, Y: 10},
		{ID: "near", X: 1, Y: 0},
		{ID: "mid", X: 3, Y: 3},
	}
	ranked := Rank(points, Coord{0, 0})
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if ranked[i].Point.ID != id {
			t.Fatalf("rank[%d] = %s, want %s", i, ranked[i].Point.ID, id)
		}
	}
	if ranked[0].Distance != 1 {
		t.Errorf("distance = %v, want 1", ranked[0].Distance)
	}
}

func TestRank_StableOnTies(t *testing.T) {
	points := []models.Point{
		{ID: "b", X: 0, Y: 1},
		{ID: "a", X: 0, Y: -1},
		{ID: "c", X: 1, Y: 0},
		{ID: "d", X: -1, Y: 0},
	}
	ranked := Rank(points, Coord{0, 0})
	for i, p := range points {
		if ranked[i].Point.ID != p.ID {
			t.Errorf("tie order changed at %d: got %s, want %s", i, ranked[i].Point.ID, p.ID)
		}
	}
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	points := []models.Point{{ID: "x", X: 5}, {ID: "y", X: 1}}
	_ = Rank(points, Coord{})
	if points[0].ID != "x" {
		t.Error("input slice was reordered")
	}
}

func TestRankClusters(t *testing.T) {
	clusters := []models.Cluster{
		{ID: 0, CX: 50, CY: 50},
		{ID: 1, CX: 1, CY: 1},
		{ID: 2, CX: 1, CY: 1},
	}
	ranked := RankClusters(clusters, Coord{0, 0})
	if ranked[0].ID != 1 || ranked[1].ID != 2 || ranked[2].ID != 0 {
		t.Errorf("got %+v", ranked)
	}
}

func TestHead(t *testing.T) {
	ranked := Rank([]models.Point{{ID: "a"}, {ID: "b"}, {ID: "c"}}, Coord{})
	if n := len(Head(ranked, 5)); n != 3 {
		t.Errorf("Head(5) over 3 = %d", n)
	}
	if n := len(Head(ranked, 2)); n != 2 {
		t.Errorf("Head(2) = %d", n)
	}
	if n := len(Head(nil, 2)); n != 0 {
		t.Errorf("Head(nil) = %d", n)
	}
}
