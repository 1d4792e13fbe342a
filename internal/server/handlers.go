package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/dataset"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/storage"
)

const defaultListLimit = 50

type createDatasetRequest struct {
	Prompt string `json:"prompt"`
	// Size caps the number of generated points kept. Zero keeps all of them.
	Size int `json:"size,omitempty"`
}

type buildIndexRequest struct {
	K    *int   `json:"k,omitempty"`
	Seed *int64 `json:"seed,omitempty"`
}

type replacePointsRequest struct {
	Points []dataset.Item `json:"points"`
}

// searchRequest uses pointers so omitted fields take config defaults while explicit values,
// including invalid ones, are passed through to validation.
type searchRequest struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Mode    *string  `json:"mode,omitempty"`
	TopK    *int     `json:"top_k,omitempty"`
	NProbes *int     `json:"n_probes,omitempty"`
	// Near places the query on the point whose label best matches the text.
	Near string `json:"near,omitempty"`
}

type searchResponse struct {
	Query models.SearchQuery `json:"query"`
	Near  *models.Point      `json:"near,omitempty"`
	*models.SearchResult
}

// toQuery applies defaults for omitted fields.
func (req *searchRequest) toQuery(defaults config.SearchConfig) (*models.SearchQuery, error) {
	q := &models.SearchQuery{
		X:       defaults.QueryX,
		Y:       defaults.QueryY,
		TopK:    defaults.TopK,
		NProbes: defaults.NProbes,
	}
	mode := defaults.Mode
	if req.X != nil {
		q.X = *req.X
	}
	if req.Y != nil {
		q.Y = *req.Y
	}
	if req.Mode != nil {
		mode = *req.Mode
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}
	if req.NProbes != nil {
		q.NProbes = *req.NProbes
	}
	m, err := models.ParseSearchMode(mode)
	if err != nil {
		return nil, err
	}
	q.Mode = m
	if defaults.MaxTopK > 0 && q.TopK > defaults.MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be <= %d, got %d", models.ErrInvalidParameter, defaults.MaxTopK, q.TopK)
	}
	return q, q.Validate()
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Size < 0 {
		s.respondError(w, http.StatusBadRequest, "size must be >= 0")
		return
	}
	s.logger.Debug("generate dataset request", zap.String("prompt", req.Prompt), zap.Int("size", req.Size))

	points, source, err := s.generator.GenerateWithSource(r.Context(), req.Prompt)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if req.Size > 0 && len(points) > req.Size {
		points = points[:req.Size]
	}
	ds := &models.Dataset{Prompt: req.Prompt, Source: source, Points: points}
	if err := s.storage.CreateDataset(r.Context(), ds); err != nil {
		s.logger.Error("storing dataset failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}

	s.mu.Lock()
	_, err = s.loadLocked(r.Context(), ds)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("loading dataset failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ds)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	datasets, err := s.storage.ListDatasets(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list datasets failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if datasets == nil {
		datasets = []*models.Dataset{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"datasets": datasets})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.storage.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete dataset request", zap.String("id", id))
	if err := s.storage.DeleteDataset(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.dropSession(id)
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// handleReplacePoints swaps the points of a stored dataset. The cached session is dropped and
// rebuilt from storage on next use.
func (s *Server) handleReplacePoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req replacePointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	points, err := dataset.ToPoints(req.Points)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if err := s.storage.ReplacePoints(r.Context(), id, points); err != nil {
		s.respondErr(w, err)
		return
	}
	s.dropSession(id)
	s.logger.Debug("dataset points replaced", zap.String("id", id), zap.Int("points", len(points)))

	ds, err := s.storage.GetDataset(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	var req buildIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	k := s.config.Index.Clusters
	if req.K != nil {
		k = *req.K
	}
	if limit := s.config.Index.MaxClusters; limit > 0 && k > limit {
		s.respondErr(w, fmt.Errorf("%w: k must be <= %d, got %d", models.ErrInvalidParameter, limit, k))
		return
	}
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	idx, err := sess.Rebuild(k, req.Seed)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, idx)
}

func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	idx, err := sess.Snapshot()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, idx)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query, err := req.toQuery(s.config.Search)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}

	resp := searchResponse{}
	if req.Near != "" {
		p, err := sess.Lookup(r.Context(), req.Near)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		query.X, query.Y = p.X, p.Y
		resp.Near = &p
	}
	s.logger.Debug("search request",
		zap.Float64("x", query.X),
		zap.Float64("y", query.Y),
		zap.String("mode", string(query.Mode)),
		zap.Int("top_k", query.TopK),
		zap.Int("n_probes", query.NProbes),
	)
	result, err := sess.Search(query)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp.Query = *query
	resp.SearchResult = result
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountDatasets(r.Context())
	if err != nil {
		s.logger.Error("status: count datasets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"datasets": count,
		"sessions": s.sessionCount(),
		"config": map[string]interface{}{
			"database_path":  s.config.Storage.DatabasePath,
			"provider":       s.config.Generator.Provider,
			"clusters":       s.config.Index.Clusters,
			"max_iterations": s.config.Index.MaxIterations,
			"max_clusters":   s.config.Index.MaxClusters,
			"top_k":          s.config.Search.TopK,
			"n_probes":       s.config.Search.NProbes,
			"mode":           s.config.Search.Mode,
		},
	}
	if diskBytes, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParameter), errors.Is(err, models.ErrInvalidDataset):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
