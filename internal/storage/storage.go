// Package storage defines the persistence interface for datasets.
package storage

import (
	"context"

	"github.com/hyperjump/annlab/internal/models"
)

// Storage defines dataset persistence. Only raw points are stored; cluster assignments are
// derived by training and never persisted.
type Storage interface {
	CreateDataset(ctx context.Context, ds *models.Dataset) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, offset, limit int) ([]*models.Dataset, error)
	DeleteDataset(ctx context.Context, id string) error
	ReplacePoints(ctx context.Context, id string, points []models.Point) error

	CountDatasets(ctx context.Context) (int64, error)

	Close() error
}
