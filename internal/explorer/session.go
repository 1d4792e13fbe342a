// Package explorer holds one dataset with its trained index and answers queries against it.
package explorer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/indexer"
	"github.com/hyperjump/annlab/internal/keyword"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/search"
)

// Session binds a dataset to its current index. Methods are safe for concurrent use; each
// operation runs to completion under the session lock.
type Session struct {
	mu          sync.Mutex
	builderOpts []indexer.BuilderOption
	engine      *search.Engine
	logger      *zap.Logger

	dataset *models.Dataset
	index   *models.Index
	labels  *keyword.LabelIndex
	k       int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. It is also handed to the builder and engine.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuilderOptions sets options used for every index build.
func WithBuilderOptions(opts ...indexer.BuilderOption) Option {
	return func(s *Session) { s.builderOpts = append(s.builderOpts, opts...) }
}

// NewSession creates an empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = search.NewEngine(search.WithLogger(s.logger))
	return s
}

// Load replaces the session dataset and trains a k-cluster index over it.
func (s *Session) Load(ctx context.Context, ds *models.Dataset, k int) (*models.Index, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", models.ErrInvalidDataset)
	}
	idx, err := s.builder(nil).Build(ds.Points, k)
	if err != nil {
		return nil, err
	}
	labels, err := keyword.NewLabelIndex()
	if err != nil {
		return nil, err
	}
	if err := labels.Index(ctx, ds.Points); err != nil {
		_ = labels.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labels != nil {
		_ = s.labels.Close()
	}
	s.dataset = ds
	s.index = idx
	s.labels = labels
	s.k = k
	s.logger.Info("Dataset loaded",
		zap.String("dataset", ds.ID),
		zap.Int("points", len(ds.Points)),
		zap.Int("k", k),
		zap.Int("iterations", idx.Iterations),
	)
	return idx, nil
}

// SetClusters rebuilds the index with k clusters. It reports whether a rebuild happened; an
// unchanged k keeps the current index.
func (s *Session) SetClusters(k int) (*models.Index, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(); err != nil {
		return nil, false, err
	}
	if k == s.k {
		return s.index, false, nil
	}
	if err := s.rebuild(k, nil); err != nil {
		return nil, false, err
	}
	return s.index, true, nil
}

// Rebuild retrains the index with k clusters, optionally from a fixed seed.
func (s *Session) Rebuild(k int, seed *int64) (*models.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(); err != nil {
		return nil, err
	}
	if err := s.rebuild(k, seed); err != nil {
		return nil, err
	}
	return s.index, nil
}

// Search runs query against the current index.
func (s *Session) Search(query *models.SearchQuery) (*models.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(); err != nil {
		return nil, err
	}
	return s.engine.Search(s.index, query)
}

// Lookup resolves text to the best matching point by label or description. An exact match is
// tried first, then a fuzzy one.
func (s *Session) Lookup(ctx context.Context, text string) (models.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(); err != nil {
		return models.Point{}, err
	}
	hits, err := s.labels.Search(ctx, text, 1, nil)
	if err != nil {
		return models.Point{}, err
	}
	if len(hits) == 0 {
		hits, err = s.labels.Search(ctx, text, 1, &keyword.SearchOptions{FuzzyEnabled: true})
		if err != nil {
			return models.Point{}, err
		}
	}
	if len(hits) == 0 {
		return models.Point{}, fmt.Errorf("%w: no point matches %q", models.ErrNotFound, text)
	}
	for _, p := range s.index.Points {
		if p.ID == hits[0].ID {
			return p, nil
		}
	}
	return models.Point{}, fmt.Errorf("%w: point %s", models.ErrNotFound, hits[0].ID)
}

// Snapshot returns the current index. Callers must treat it as read-only.
func (s *Session) Snapshot() (*models.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireDataset(); err != nil {
		return nil, err
	}
	return s.index, nil
}

// Dataset returns the loaded dataset, or nil.
func (s *Session) Dataset() *models.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset
}

// Close releases the label index.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labels == nil {
		return nil
	}
	err := s.labels.Close()
	s.labels = nil
	s.dataset = nil
	s.index = nil
	return err
}

func (s *Session) rebuild(k int, seed *int64) error {
	idx, err := s.builder(seed).Build(s.dataset.Points, k)
	if err != nil {
		return err
	}
	s.index = idx
	s.k = k
	s.logger.Debug("Index rebuilt",
		zap.String("dataset", s.dataset.ID),
		zap.Int("k", k),
		zap.Int64("seed", idx.Seed),
		zap.Ints("empty_clusters", idx.EmptyClusters()),
	)
	return nil
}

func (s *Session) builder(seed *int64) *indexer.Builder {
	opts := append([]indexer.BuilderOption{indexer.WithLogger(s.logger)}, s.builderOpts...)
	if seed != nil {
		opts = append(opts, indexer.WithSeed(*seed))
	}
	return indexer.NewBuilder(opts...)
}

func (s *Session) requireDataset() error {
	if s.dataset == nil {
		return fmt.Errorf("%w: no dataset loaded", models.ErrNotFound)
	}
	return nil
}
