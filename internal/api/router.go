package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/moviemetric/moviemetric/internal/api/middleware"
	"github.com/moviemetric/moviemetric/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler          http.HandlerFunc
	ListMoviesHandler      http.HandlerFunc
	GetMovieHandler        http.HandlerFunc
	RecommendationsHandler http.HandlerFunc
	TrendingHandler        http.HandlerFunc
	GenreStatsHandler      http.HandlerFunc
	RatingsByDecadeHandler http.HandlerFunc
	SearchHandler          http.HandlerFunc

	IngestHandler        http.HandlerFunc
	ComputeHandler       http.HandlerFunc
	ComputeAllHandler    http.HandlerFunc
	SearchRebuildHandler http.HandlerFunc
	JobStatusHandler     http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited routes
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/movies", orNotImplemented(deps.ListMoviesHandler))
		r.Get("/api/v1/movies/{movieID}", orNotImplemented(deps.GetMovieHandler))
		r.Get("/api/v1/movies/{movieID}/recommendations", orNotImplemented(deps.RecommendationsHandler))

		r.Get("/api/v1/analytics/trending", orNotImplemented(deps.TrendingHandler))
		r.Get("/api/v1/analytics/genres", orNotImplemented(deps.GenreStatsHandler))
		r.Get("/api/v1/analytics/ratings-by-decade", orNotImplemented(deps.RatingsByDecadeHandler))

		r.Get("/api/v1/search", orNotImplemented(deps.SearchHandler))

		// Admin routes
		r.Post("/api/v1/admin/ingest/run", orNotImplemented(deps.IngestHandler))
		r.Post("/api/v1/admin/compute/all", orNotImplemented(deps.ComputeAllHandler))
		r.Post("/api/v1/admin/compute/{kind}", orNotImplemented(deps.ComputeHandler))
		r.Post("/api/v1/admin/search/rebuild", orNotImplemented(deps.SearchRebuildHandler))
		r.Get("/api/v1/admin/jobs/{jobID}", orNotImplemented(deps.JobStatusHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
