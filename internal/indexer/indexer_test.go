package indexer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/vector"
	"go.uber.org/zap"
)

func scenarioPoints() []models.Point {
	return []models.Point{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 0, Y: 1},
		{ID: "c", X: 10, Y: 10},
		{ID: "d", X: 10, Y: 11},
	}
}

func randomPoints(n int, seed int64) []models.Point {
	rng := rand.New(rand.NewSource(seed))
	points := make([]models.Point, n)
	for i := range points {
		points[i] = models.Point{ID: fmt.Sprintf("pt-%d", i), X: rng.Float64() * 100, Y: rng.Float64() * 100}
	}
	return points
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuild_InvalidK(t *testing.T) {
	b := NewBuilder(WithSeed(1))
	for _, k := range []int{0, -1} {
		_, err := b.Build(scenarioPoints(), k)
		if !errors.Is(err, models.ErrInvalidParameter) {
			t.Errorf("Build(k=%d) err = %v, want ErrInvalidParameter", k, err)
		}
	}
}

func TestBuild_KAboveCeiling(t *testing.T) {
	tests := []struct {
		name    string
		opts    []BuilderOption
		k       int
		wantErr bool
	}{
		{"huge k with default ceiling", nil, 1 << 62, true},
		{"just above default ceiling", nil, DefaultMaxClusters + 1, true},
		{"configured ceiling rejects", []BuilderOption{WithMaxClusters(3)}, 4, true},
		{"configured ceiling accepts", []BuilderOption{WithMaxClusters(3)}, 3, false},
		{"k above point count is allowed", nil, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]BuilderOption{WithSeed(1)}, tt.opts...)
			_, err := NewBuilder(opts...).Build(scenarioPoints(), tt.k)
			if tt.wantErr && !errors.Is(err, models.ErrInvalidParameter) {
				t.Errorf("Build(k=%d) err = %v, want ErrInvalidParameter", tt.k, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Build(k=%d) err = %v", tt.k, err)
			}
		})
	}
}

func TestBuildFromCentroids_TooManyCentroids(t *testing.T) {
	centroids := make([]vector.Coord, 4)
	_, err := NewBuilder(WithMaxClusters(3)).BuildFromCentroids(scenarioPoints(), centroids)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestBuild_EmptyPoints(t *testing.T) {
	idx, err := NewBuilder().Build(nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Points) != 0 || len(idx.Clusters) != 0 {
		t.Errorf("expected empty index, got %d points %d clusters", len(idx.Points), len(idx.Clusters))
	}
}

func TestBuildFromCentroids_Scenario(t *testing.T) {
	b := NewBuilder(WithLogger(zap.NewNop()))
	idx, err := b.BuildFromCentroids(scenarioPoints(), []vector.Coord{{X: 0, Y: 0}, {X: 10, Y: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if !idx.Converged {
		t.Error("expected convergence")
	}
	if idx.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", idx.Iterations)
	}
	c0, c1 := idx.Clusters[0], idx.Clusters[1]
	if !near(c0.CX, 0) || !near(c0.CY, 0.5) {
		t.Errorf("cluster 0 centroid = (%v,%v), want (0,0.5)", c0.CX, c0.CY)
	}
	if !near(c1.CX, 10) || !near(c1.CY, 10.5) {
		t.Errorf("cluster 1 centroid = (%v,%v), want (10,10.5)", c1.CX, c1.CY)
	}
	want := []int{0, 0, 1, 1}
	for i, p := range idx.Points {
		if *p.ClusterID != want[i] {
			t.Errorf("point %s cluster = %d, want %d", p.ID, *p.ClusterID, want[i])
		}
	}
	if c0.Size != 2 || c1.Size != 2 || c0.Empty || c1.Empty {
		t.Errorf("unexpected sizes %+v %+v", c0, c1)
	}
}

func TestBuild_ScenarioFindsNaturalSplit(t *testing.T) {
	// Any run that keeps both clusters alive must end at the natural split.
	for seed := int64(1); seed <= 200; seed++ {
		idx, err := NewBuilder(WithSeed(seed)).Build(scenarioPoints(), 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(idx.EmptyClusters()) > 0 {
			continue
		}
		a, c := idx.Points[0], idx.Points[2]
		if *a.ClusterID == *c.ClusterID {
			t.Fatalf("seed %d: far points share a cluster", seed)
		}
		near0 := idx.Clusters[*a.ClusterID]
		if !near(near0.CX, 0) || !near(near0.CY, 0.5) {
			t.Errorf("seed %d: near centroid = (%v,%v)", seed, near0.CX, near0.CY)
		}
		return
	}
	t.Fatal("no seed produced two live clusters")
}

func TestBuild_DenseClusterIDs(t *testing.T) {
	points := randomPoints(60, 7)
	for k := 1; k <= 10; k++ {
		idx, err := NewBuilder(WithSeed(int64(k))).Build(points, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(idx.Clusters) != k || idx.K != k {
			t.Fatalf("k=%d: got %d clusters", k, len(idx.Clusters))
		}
		total := 0
		for i, c := range idx.Clusters {
			if c.ID != i {
				t.Errorf("k=%d: cluster at %d has id %d", k, i, c.ID)
			}
			if c.Color != ColorFor(i) {
				t.Errorf("k=%d: cluster %d color %s", k, i, c.Color)
			}
			total += c.Size
		}
		if total != len(points) {
			t.Errorf("k=%d: cluster sizes sum to %d", k, total)
		}
		for _, p := range idx.Points {
			if !p.Assigned() || *p.ClusterID < 0 || *p.ClusterID >= k {
				t.Errorf("k=%d: point %s has cluster %v", k, p.ID, p.ClusterID)
			}
		}
	}
}

func TestBuild_DeterministicWithSeed(t *testing.T) {
	points := randomPoints(40, 3)
	a, err := NewBuilder(WithSeed(42)).Build(points, 5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBuilder(WithSeed(42)).Build(points, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("builds with the same seed differ")
	}
	if a.Seed != 42 {
		t.Errorf("seed = %d, want 42", a.Seed)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	points := randomPoints(10, 1)
	if _, err := NewBuilder(WithSeed(1)).Build(points, 3); err != nil {
		t.Fatal(err)
	}
	for _, p := range points {
		if p.Assigned() {
			t.Fatalf("input point %s was annotated", p.ID)
		}
	}
}

func TestBuild_IgnoresStaleAssignments(t *testing.T) {
	points := randomPoints(30, 9)
	fresh, err := NewBuilder(WithSeed(5)).Build(points, 4)
	if err != nil {
		t.Fatal(err)
	}
	stale, err := NewBuilder(WithSeed(5)).Build(fresh.Points, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fresh.Clusters, stale.Clusters) || fresh.Iterations != stale.Iterations {
		t.Error("rebuild from annotated points should match a fresh build")
	}
}

func TestBuildFromCentroids_DeadCluster(t *testing.T) {
	idx, err := NewBuilder().BuildFromCentroids(scenarioPoints(), []vector.Coord{{0, 0}, {10, 10}, {90, 90}})
	if err != nil {
		t.Fatal(err)
	}
	dead := idx.Clusters[2]
	if !dead.Empty || dead.Size != 0 {
		t.Errorf("cluster 2 should be empty: %+v", dead)
	}
	if dead.CX != 90 || dead.CY != 90 {
		t.Errorf("dead cluster moved to (%v,%v)", dead.CX, dead.CY)
	}
	if got := idx.EmptyClusters(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("EmptyClusters = %v", got)
	}
}

func TestBuildFromCentroids_TieGoesToLowestID(t *testing.T) {
	points := []models.Point{{ID: "mid", X: 5, Y: 0}}
	idx, err := NewBuilder(WithMaxIterations(1)).BuildFromCentroids(points, []vector.Coord{{0, 0}, {10, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if *idx.Points[0].ClusterID != 0 {
		t.Errorf("tie assigned to %d, want 0", *idx.Points[0].ClusterID)
	}
}

func TestBuildFromCentroids_NoCentroids(t *testing.T) {
	_, err := NewBuilder().BuildFromCentroids(scenarioPoints(), nil)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("err = %v", err)
	}
}

func TestBuild_IterationCap(t *testing.T) {
	idx, err := NewBuilder(WithSeed(3), WithMaxIterations(1)).Build(randomPoints(50, 2), 4)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Iterations != 1 || idx.Converged {
		t.Errorf("iterations=%d converged=%v", idx.Iterations, idx.Converged)
	}
}

func TestRetrain_ConvergedIndexIsIdempotent(t *testing.T) {
	points := randomPoints(50, 11)
	var idx *models.Index
	for seed := int64(1); seed <= 50; seed++ {
		built, err := NewBuilder(WithSeed(seed)).Build(points, 4)
		if err != nil {
			t.Fatal(err)
		}
		if built.Converged {
			idx = built
			break
		}
	}
	if idx == nil {
		t.Fatal("no converged build")
	}
	again, err := NewBuilder().Retrain(idx)
	if err != nil {
		t.Fatal(err)
	}
	if again.Iterations != 1 || !again.Converged {
		t.Errorf("retrain iterations=%d converged=%v", again.Iterations, again.Converged)
	}
	if !reflect.DeepEqual(idx.Points, again.Points) {
		t.Error("assignments changed on retrain")
	}
	if !reflect.DeepEqual(idx.Clusters, again.Clusters) {
		t.Error("clusters changed on retrain")
	}
	if again.Seed != idx.Seed {
		t.Errorf("seed = %d, want %d", again.Seed, idx.Seed)
	}
}

func TestRetrain_Untrained(t *testing.T) {
	_, err := NewBuilder().Retrain(&models.Index{Points: scenarioPoints()})
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("err = %v", err)
	}
	_, err = NewBuilder().Retrain(nil)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("nil index err = %v", err)
	}
}

func TestWithBounds(t *testing.T) {
	bounds := Bounds{MinX: 200, MaxX: 210, MinY: -10, MaxY: -5}
	// A single far point keeps one cluster; the rest keep their initial centroids.
	idx, err := NewBuilder(WithSeed(8), WithBounds(bounds), WithMaxIterations(1)).Build([]models.Point{{ID: "p", X: 205, Y: -7}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range idx.Clusters {
		if c.CX < 200 || c.CX > 210 || c.CY < -10 || c.CY > -5 {
			t.Errorf("centroid (%v,%v) outside bounds", c.CX, c.CY)
		}
	}
}
