package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/annlab/internal/dataset"
	"github.com/hyperjump/annlab/internal/explorer"
	"github.com/hyperjump/annlab/internal/indexer"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/vector"
)

const e2eClusters = 5

// loadSession writes the corpus as ext, reads it back and trains from the blob centers.
func loadSession(t *testing.T, c *Corpus, ext string) *explorer.Session {
	t.Helper()
	content, err := EncodeDataset(ext, c.Points)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "corpus"+ext)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	points, err := dataset.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(%s): %v", ext, err)
	}
	sess := explorer.NewSession(explorer.WithBuilderOptions(indexer.WithSeed(1)))
	t.Cleanup(func() { _ = sess.Close() })
	if _, err := sess.Load(context.Background(), &models.Dataset{ID: "corpus", Points: points}, e2eClusters); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestE2E_ExactSearchFindsExpectedPoint(t *testing.T) {
	c := BuildCorpus(DefaultBlobs, 3)
	for _, ext := range SupportedFileExtensions {
		t.Run(ext, func(t *testing.T) {
			sess := loadSession(t, c, ext)
			for _, tc := range c.TestCases {
				res, err := sess.Search(&models.SearchQuery{X: tc.X, Y: tc.Y, Mode: models.ModeExact, TopK: 3, NProbes: 1})
				if err != nil {
					t.Fatal(err)
				}
				if len(res.Neighbors) == 0 || res.Neighbors[0].Point.ID != tc.ExpectedID {
					t.Errorf("%s: got %v, want %s first", tc.Description, res.IDs(), tc.ExpectedID)
				}
				if res.ScannedCount != len(c.Points) || res.Recall != 100 {
					t.Errorf("%s: scanned=%d recall=%v", tc.Description, res.ScannedCount, res.Recall)
				}
			}
		})
	}
}

func TestE2E_ApproxSearchWithAllProbesMatchesExact(t *testing.T) {
	c := BuildCorpus(DefaultBlobs, 4)
	sess := loadSession(t, c, ".json")
	for _, tc := range c.TestCases {
		res, err := sess.Search(&models.SearchQuery{X: tc.X, Y: tc.Y, Mode: models.ModeApprox, TopK: 10, NProbes: e2eClusters})
		if err != nil {
			t.Fatal(err)
		}
		if res.Recall != 100 {
			t.Errorf("%s: recall %v with every cluster probed", tc.Description, res.Recall)
		}
	}
}

func TestE2E_RecallAndScanGrowWithProbes(t *testing.T) {
	c := BuildCorpus(DefaultBlobs, 5)
	sess := loadSession(t, c, ".csv")
	idx, err := sess.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	queries := []vector.Coord{{X: 50, Y: 50}, {X: 32, Y: 32}, {X: 0, Y: 100}, {X: 70, Y: 20}}
	for _, q := range queries {
		prevRecall, prevScanned := -1.0, -1
		for n := 1; n <= len(idx.Clusters)+1; n++ {
			res, err := sess.Search(&models.SearchQuery{X: q.X, Y: q.Y, Mode: models.ModeApprox, TopK: 15, NProbes: n})
			if err != nil {
				t.Fatal(err)
			}
			if res.Recall < prevRecall {
				t.Errorf("query %+v: recall dropped from %v to %v at n_probes=%d", q, prevRecall, res.Recall, n)
			}
			if res.ScannedCount < prevScanned {
				t.Errorf("query %+v: scanned dropped from %d to %d at n_probes=%d", q, prevScanned, res.ScannedCount, n)
			}
			if res.ScannedCount > res.TotalPoints {
				t.Errorf("query %+v: scanned %d > total %d", q, res.ScannedCount, res.TotalPoints)
			}
			prevRecall, prevScanned = res.Recall, res.ScannedCount
		}
		if prevRecall != 100 {
			t.Errorf("query %+v: recall %v after probing every cluster", q, prevRecall)
		}
	}
}

func TestE2E_LookupPlacesQueryOnLabel(t *testing.T) {
	c := BuildCorpus(DefaultBlobs, 6)
	sess := loadSession(t, c, ".xlsx")
	p, err := sess.Lookup(context.Background(), "tropical fruit 0")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "tropical-0" {
		// Only the "0" term separates tropical-0 from the other tropical labels.
		t.Errorf("Lookup = %s, want tropical-0", p.ID)
	}
}
