// Package e2e provides end-to-end tests over a generated clustered corpus and its file formats.
package e2e

import (
	"fmt"
	"math/rand"

	"github.com/hyperjump/annlab/internal/models"
)

// Blob is one group of points scattered around a center.
type Blob struct {
	Name   string
	CX, CY float64
	Spread float64
	Size   int
}

// QueryTestCase is a query point and the id of its true nearest neighbor.
type QueryTestCase struct {
	X, Y        float64
	ExpectedID  string
	Description string
}

// Corpus holds points and query test cases for E2E tests.
type Corpus struct {
	Points    []models.Point
	TestCases []QueryTestCase
	Blobs     []Blob
}

// DefaultBlobs are five well separated groups inside [0,100]^2.
var DefaultBlobs = []Blob{
	{Name: "citrus", CX: 15, CY: 15, Spread: 4, Size: 20},
	{Name: "berry", CX: 85, CY: 15, Spread: 4, Size: 20},
	{Name: "stone", CX: 50, CY: 50, Spread: 4, Size: 20},
	{Name: "melon", CX: 15, CY: 85, Spread: 4, Size: 20},
	{Name: "tropical", CX: 85, CY: 85, Spread: 4, Size: 20},
}

// BuildCorpus returns points drawn around blobs with a fixed seed, plus one query per blob
// placed exactly on the blob's first point.
func BuildCorpus(blobs []Blob, seed int64) *Corpus {
	rng := rand.New(rand.NewSource(seed))
	c := &Corpus{Blobs: blobs}
	for _, b := range blobs {
		for i := 0; i < b.Size; i++ {
			c.Points = append(c.Points, models.Point{
				ID:          fmt.Sprintf("%s-%d", b.Name, i),
				Label:       fmt.Sprintf("%s fruit %d", b.Name, i),
				Description: fmt.Sprintf("member of the %s group", b.Name),
				X:           clamp(b.CX + (rng.Float64()*2-1)*b.Spread),
				Y:           clamp(b.CY + (rng.Float64()*2-1)*b.Spread),
			})
		}
	}
	for _, b := range blobs {
		first := fmt.Sprintf("%s-0", b.Name)
		for _, p := range c.Points {
			if p.ID == first {
				c.TestCases = append(c.TestCases, QueryTestCase{
					X:           p.X,
					Y:           p.Y,
					ExpectedID:  first,
					Description: "query on " + first,
				})
			}
		}
	}
	return c
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
