package server

import (
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/recommend"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := &models.SuggestQuery{Query: r.URL.Query().Get("q"), Limit: queryInt(r, "limit")}
	s.logger.Debug("suggest request", zap.String("query", q.Query), zap.Int("limit", q.Limit))
	resp, err := s.engine.Suggest(r.Context(), q)
	if err != nil {
		s.respondEngineError(w, "suggest", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := &models.RecommendQuery{Title: r.URL.Query().Get("title"), Limit: queryInt(r, "limit")}
	s.logger.Debug("recommend request", zap.String("title", q.Title), zap.Int("limit", q.Limit))
	resp, err := s.engine.Recommend(r.Context(), q)
	if err != nil {
		s.respondEngineError(w, "recommend", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := &models.SuggestQuery{Query: r.URL.Query().Get("q"), Limit: queryInt(r, "limit")}
	fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy"))
	s.logger.Debug("search request", zap.String("query", q.Query), zap.Bool("fuzzy", fuzzy))
	resp, err := s.engine.Search(r.Context(), q, fuzzy)
	if err != nil {
		s.respondEngineError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("catalog refresh requested")
	resp, err := s.engine.RefreshSummary(r.Context())
	if err != nil {
		s.respondEngineError(w, "refresh", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// queryInt parses an integer query parameter; absent or invalid values are 0.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) respondEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recommend.ErrTitleNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
