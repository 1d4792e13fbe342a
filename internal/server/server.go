// Package server provides the HTTP API for annlab.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/explorer"
	"github.com/hyperjump/annlab/internal/indexer"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/storage"
	"github.com/hyperjump/annlab/pkg/utils"
)

// Generator produces dataset points for a prompt and names the source that served them.
type Generator interface {
	GenerateWithSource(ctx context.Context, prompt string) ([]models.Point, string, error)
}

// Server is the HTTP server for the annlab API.
type Server struct {
	storage   storage.Storage
	generator Generator
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server

	mu       sync.Mutex
	sessions map[string]*explorer.Session
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	generator Generator,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:   store,
		generator: generator,
		config:    cfg,
		logger:    utils.OrNop(logger),
		sessions:  make(map[string]*explorer.Session),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1/datasets", func(r chi.Router) {
		r.Post("/", s.handleCreateDataset)
		r.Get("/", s.handleListDatasets)
		r.Get("/{id}", s.handleGetDataset)
		r.Delete("/{id}", s.handleDeleteDataset)
		r.Put("/{id}/points", s.handleReplacePoints)
		r.Post("/{id}/index", s.handleBuildIndex)
		r.Get("/{id}/index", s.handleGetIndex)
		r.Post("/{id}/search", s.handleSearch)
	})
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and releases sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, sess := range s.sessions {
		_ = sess.Close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// session returns the session of dataset id, loading the dataset from storage and training the
// default index on first use.
func (s *Server) session(ctx context.Context, id string) (*explorer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	ds, err := s.storage.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.loadLocked(ctx, ds)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) loadLocked(ctx context.Context, ds *models.Dataset) (*explorer.Session, error) {
	sess := explorer.NewSession(
		explorer.WithLogger(s.logger),
		explorer.WithBuilderOptions(indexer.OptionsFromConfig(s.config.Index, s.logger)...),
	)
	if _, err := sess.Load(ctx, ds, s.config.Index.Clusters); err != nil {
		return nil, err
	}
	if old, ok := s.sessions[ds.ID]; ok {
		_ = old.Close()
	}
	s.sessions[ds.ID] = sess
	return sess, nil
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		_ = sess.Close()
		delete(s.sessions, id)
	}
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
