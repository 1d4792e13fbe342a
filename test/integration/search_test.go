// Package integration provides end-to-end tests (requires real storage and indices).
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/dataset"
	"github.com/hyperjump/annlab/internal/explorer"
	"github.com/hyperjump/annlab/internal/indexer"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/search"
	"github.com/hyperjump/annlab/internal/storage"
)

func TestIntegration_Search(t *testing.T) {
	dir := t.TempDir()
	seed := int64(42)
	cfg := &config.Config{
		Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "db.sqlite")},
		Index:   config.IndexConfig{Clusters: 4, MaxIterations: 50, Seed: &seed},
		Search:  config.SearchConfig{TopK: 5, NProbes: 1, Mode: "approx", MaxTopK: 100},
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	points, err := dataset.NewRandomSource(60, &seed).Generate(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	ds := &models.Dataset{Prompt: "random", Source: dataset.SourceFallback, Points: points}
	if err := store.CreateDataset(ctx, ds); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Points) != 60 {
		t.Fatalf("stored %d points, want 60", len(loaded.Points))
	}

	sess := explorer.NewSession(explorer.WithBuilderOptions(indexer.OptionsFromConfig(cfg.Index, nil)...))
	defer sess.Close()
	idx, err := sess.Load(ctx, loaded, cfg.Index.Clusters)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Clusters) != 4 {
		t.Fatalf("got %d clusters, want 4", len(idx.Clusters))
	}
	for _, p := range idx.Points {
		if !p.Assigned() {
			t.Fatalf("point %s unassigned after build", p.ID)
		}
	}

	mode, err := models.ParseSearchMode(cfg.Search.Mode)
	if err != nil {
		t.Fatal(err)
	}
	query := &models.SearchQuery{X: 50, Y: 50, Mode: mode, TopK: cfg.Search.TopK, NProbes: cfg.Search.NProbes}
	approx, err := sess.Search(query)
	if err != nil {
		t.Fatal(err)
	}
	if len(approx.ProbedClusters) != 1 {
		t.Errorf("probed %v, want one cluster", approx.ProbedClusters)
	}
	if approx.ScannedCount > approx.TotalPoints {
		t.Errorf("scanned %d > total %d", approx.ScannedCount, approx.TotalPoints)
	}

	exact := *query
	exact.Mode = models.ModeExact
	truth, err := sess.Search(&exact)
	if err != nil {
		t.Fatal(err)
	}
	want := search.Recall(truth.Neighbors, approx.Neighbors)
	if approx.Recall != want {
		t.Errorf("recall = %v, want %v", approx.Recall, want)
	}

	all := *query
	all.NProbes = cfg.Index.Clusters
	full, err := sess.Search(&all)
	if err != nil {
		t.Fatal(err)
	}
	if full.Recall != 100 || full.ScannedCount != full.TotalPoints {
		t.Errorf("all probes: recall=%v scanned=%d/%d", full.Recall, full.ScannedCount, full.TotalPoints)
	}

	// Stored points stay unassigned; only the session index carries clusters.
	again, err := store.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range again.Points {
		if p.Assigned() {
			t.Fatalf("stored point %s has a cluster", p.ID)
		}
	}
}
