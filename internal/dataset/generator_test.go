package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/models"
)

func TestNewGenerator_Random(t *testing.T) {
	seed := int64(1)
	gen, err := NewGenerator(context.Background(), config.GeneratorConfig{Provider: "random", FallbackSize: 7, Seed: &seed}, nil)
	if err != nil {
		t.Fatal(err)
	}
	points, source, err := gen.GenerateWithSource(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if source != SourceFallback || len(points) != 7 {
		t.Errorf("source=%q points=%d, want fallback/7", source, len(points))
	}
}

func TestNewGenerator_GeminiWithoutKeyFallsBack(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.GeneratorConfig{Provider: "gemini", FallbackSize: 5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Name() != SourceGemini {
		t.Errorf("Name() = %q, want gemini", gen.Name())
	}
	points, source, err := gen.GenerateWithSource(context.Background(), "fruits")
	if err != nil {
		t.Fatal(err)
	}
	if source != SourceFallback || len(points) != 5 {
		t.Errorf("source=%q points=%d, want fallback/5", source, len(points))
	}
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), config.GeneratorConfig{Provider: "openai"}, nil)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}
