package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/moviemetric/moviemetric/internal/api/response"
	"github.com/moviemetric/moviemetric/internal/cache"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// latestArtifact reads the newest artifact of a kind through the cache-aside
// layer. A missing artifact is store.ErrNotFound, never cached.
func latestArtifact(r *http.Request, st store.Store, c cache.Cache, kind string, ttl time.Duration) (*models.Artifact, error) {
	return cache.GetOrCompute(r.Context(), c, cache.LatestArtifactKey(kind), ttl,
		func(ctx context.Context) (*models.Artifact, error) {
			return st.GetLatestArtifact(ctx, kind)
		})
}

// NewTrendingHandler returns an http.HandlerFunc for GET /api/v1/analytics/trending.
func NewTrendingHandler(st store.Store, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := latestArtifact(r, st, c, models.ArtifactTrending, ttl)
		if handled := writeArtifactError(w, err); handled {
			return
		}

		var rows []models.TrendingRow
		if err := json.Unmarshal(artifact.Rows, &rows); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		limit := queryInt(r.URL.Query().Get("limit"), len(rows))
		if limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}

		writeArtifact(w, artifact, rows)
	}
}

// NewGenreStatsHandler returns an http.HandlerFunc for GET /api/v1/analytics/genres.
func NewGenreStatsHandler(st store.Store, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := latestArtifact(r, st, c, models.ArtifactGenreStats, ttl)
		if handled := writeArtifactError(w, err); handled {
			return
		}

		var rows []models.GenreStatsRow
		if err := json.Unmarshal(artifact.Rows, &rows); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		writeArtifact(w, artifact, rows)
	}
}

// NewRatingsByDecadeHandler returns an http.HandlerFunc for
// GET /api/v1/analytics/ratings-by-decade.
func NewRatingsByDecadeHandler(st store.Store, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := latestArtifact(r, st, c, models.ArtifactRatingsByDecade, ttl)
		if handled := writeArtifactError(w, err); handled {
			return
		}

		var rows []models.DecadeRow
		if err := json.Unmarshal(artifact.Rows, &rows); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		writeArtifact(w, artifact, rows)
	}
}

// writeArtifactError writes the error response for a failed artifact read and
// reports whether the request is finished.
func writeArtifactError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "ARTIFACT_NOT_READY",
			"This analytics artifact has not been computed yet", nil)
		return true
	}
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	return true
}

func writeArtifact(w http.ResponseWriter, artifact *models.Artifact, rows any) {
	response.JSON(w, map[string]any{
		"kind":       artifact.Kind,
		"as_of_date": artifact.AsOfDate.Format("2006-01-02"),
		"rows":       rows,
	})
}
