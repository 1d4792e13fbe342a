package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hyperjump/annlab/internal/models"
)

// DefaultFallbackSize is the number of synthetic points when none is configured.
const DefaultFallbackSize = 30

// RandomSource synthesizes points uniformly inside [5,95]x[5,95]. The prompt is ignored.
type RandomSource struct {
	size int
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewRandomSource creates a generator of size points. A nil seed seeds from the clock.
func NewRandomSource(size int, seed *int64) *RandomSource {
	if size <= 0 {
		size = DefaultFallbackSize
	}
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return &RandomSource{size: size, rng: rand.New(rand.NewSource(s))}
}

// Name implements Source.
func (r *RandomSource) Name() string { return SourceFallback }

// Generate implements Source.
func (r *RandomSource) Generate(_ context.Context, _ string) ([]models.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	points := make([]models.Point, r.size)
	for i := range points {
		points[i] = models.Point{
			ID:          fmt.Sprintf("fallback-%d", i),
			X:           r.rng.Float64()*90 + 5,
			Y:           r.rng.Float64()*90 + 5,
			Label:       fmt.Sprintf("Item %d", i),
			Description: "Random generated item",
		}
	}
	return points, nil
}
