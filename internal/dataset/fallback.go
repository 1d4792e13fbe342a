package dataset

import (
	"context"
	"fmt"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/pkg/utils"
	"go.uber.org/zap"
)

// FallbackSource serves from Primary and switches to Fallback when Primary fails. The primary
// error is logged, never returned.
type FallbackSource struct {
	primary  Source
	fallback Source
	logger   *zap.Logger
}

// NewFallbackSource wraps primary with fallback. logger may be nil.
func NewFallbackSource(primary, fallback Source, logger *zap.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, fallback: fallback, logger: utils.OrNop(logger)}
}

// Name implements Source.
func (f *FallbackSource) Name() string { return f.primary.Name() }

// Generate implements Source.
func (f *FallbackSource) Generate(ctx context.Context, prompt string) ([]models.Point, error) {
	points, _, err := f.GenerateWithSource(ctx, prompt)
	return points, err
}

// GenerateWithSource returns the points and the name of the source that produced them.
func (f *FallbackSource) GenerateWithSource(ctx context.Context, prompt string) ([]models.Point, string, error) {
	points, err := f.primary.Generate(ctx, prompt)
	if err == nil && len(points) > 0 {
		return points, f.primary.Name(), nil
	}
	if err == nil {
		err = fmt.Errorf("%w: %s returned no points", models.ErrUpstreamUnavailable, f.primary.Name())
	}
	f.logger.Warn("dataset generation failed, using fallback",
		zap.String("source", f.primary.Name()),
		zap.String("fallback", f.fallback.Name()),
		zap.Error(err),
	)
	points, err = f.fallback.Generate(ctx, prompt)
	if err != nil {
		return nil, "", fmt.Errorf("fallback %s: %w", f.fallback.Name(), err)
	}
	return points, f.fallback.Name(), nil
}
