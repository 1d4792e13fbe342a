package dataset

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/models"
)

// Provider names accepted in the generator config.
const (
	ProviderGemini = "gemini"
	ProviderRandom = "random"
)

// NewGenerator builds the configured source wrapped with the random fallback.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *zap.Logger) (*FallbackSource, error) {
	random := NewRandomSource(cfg.FallbackSize, cfg.Seed)
	switch strings.ToLower(cfg.Provider) {
	case ProviderRandom:
		return NewFallbackSource(random, random, logger), nil
	case ProviderGemini, "":
		gemini, err := NewGeminiSource(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewFallbackSource(gemini, random, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown generator provider %q", models.ErrInvalidParameter, cfg.Provider)
	}
}
