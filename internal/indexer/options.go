package indexer

import (
	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/config"
)

// OptionsFromConfig maps the index config section to builder options.
func OptionsFromConfig(cfg config.IndexConfig, logger *zap.Logger) []BuilderOption {
	opts := []BuilderOption{
		WithLogger(logger),
		WithMaxIterations(cfg.MaxIterations),
		WithMaxClusters(cfg.MaxClusters),
	}
	if cfg.Bounds != (config.BoundsConfig{}) {
		opts = append(opts, WithBounds(Bounds{
			MinX: cfg.Bounds.MinX,
			MaxX: cfg.Bounds.MaxX,
			MinY: cfg.Bounds.MinY,
			MaxY: cfg.Bounds.MaxY,
		}))
	}
	if cfg.Seed != nil {
		opts = append(opts, WithSeed(*cfg.Seed))
	}
	return opts
}
