package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moviemetric/moviemetric/internal/api/response"
	"github.com/moviemetric/moviemetric/internal/cache"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// NewListMoviesHandler returns an http.HandlerFunc for GET /api/v1/movies.
func NewListMoviesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.MovieFilter{
			Page:  queryInt(q.Get("page"), 1),
			Limit: queryInt(q.Get("limit"), 20),
		}
		if v := q.Get("trending"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "trending must be a boolean", nil)
				return
			}
			filter.Trending = &b
		}
		if v := q.Get("underrated"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "underrated must be a boolean", nil)
				return
			}
			filter.Underrated = &b
		}

		movies, total, err := st.ListMovies(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if movies == nil {
			movies = []*models.Movie{}
		}

		response.Collection(w, movies, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewGetMovieHandler returns an http.HandlerFunc for GET /api/v1/movies/{movieID}.
// Movie reads go through the cache-aside layer.
func NewGetMovieHandler(st store.Store, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "movieID must be an integer", nil)
			return
		}

		movie, err := cache.GetOrCompute(r.Context(), c, cache.MovieKey(id), ttl,
			func(ctx context.Context) (*models.Movie, error) {
				return st.GetMovie(ctx, id)
			})
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "MOVIE_NOT_FOUND", "Movie not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, movie)
	}
}

// NewMovieRecommendationsHandler returns an http.HandlerFunc for
// GET /api/v1/movies/{movieID}/recommendations, served from the latest
// recommendations artifact.
func NewMovieRecommendationsHandler(st store.Store, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "movieID must be an integer", nil)
			return
		}

		artifact, err := latestArtifact(r, st, c, models.ArtifactRecommendations, ttl)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "ARTIFACT_NOT_READY",
				"Recommendations have not been computed yet", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		var rows []models.RecommendationRow
		if err := json.Unmarshal(artifact.Rows, &rows); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		recs := []models.RecommendedMovie{}
		for _, row := range rows {
			if row.MovieID == id {
				recs = row.Recommendations
				break
			}
		}

		response.JSON(w, map[string]any{
			"movie_id":        id,
			"as_of_date":      artifact.AsOfDate.Format("2006-01-02"),
			"recommendations": recs,
		})
	}
}

func queryInt(v string, defaultVal int) int {
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
