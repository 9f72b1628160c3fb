package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/moviemetric/moviemetric/internal/api/response"
)

const maxSearchLimit = 50

// Searcher runs keyword queries against the movie index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]any, error)
}

// NewSearchHandler returns an http.HandlerFunc for GET /api/v1/search.
func NewSearchHandler(svc Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "q is required", nil)
			return
		}

		limit := queryInt(r.URL.Query().Get("limit"), 20)
		if limit <= 0 || limit > maxSearchLimit {
			limit = 20
		}

		hits, err := svc.Search(r.Context(), query, limit)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "SEARCH_UNAVAILABLE", "Search is currently unavailable", nil)
			return
		}
		if hits == nil {
			hits = []any{}
		}

		response.JSON(w, map[string]any{
			"query": query,
			"hits":  hits,
		})
	}
}
