// Package ingest pulls raw records from the upstream catalog and upserts them
// into the store. Runs are idempotent: repeated ingestion over the same source
// data converges to the same stored state.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moviemetric/moviemetric/internal/config"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/internal/scoring"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/internal/tmdb"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// Service runs the ingestion job.
type Service struct {
	catalog    tmdb.Client
	store      store.Store
	tracker    *jobs.Tracker
	pages      int
	trendMin   float64
	underrated scoring.UnderratedThresholds
}

// NewService creates a new ingestion Service.
func NewService(catalog tmdb.Client, st store.Store, tracker *jobs.Tracker, tmdbCfg config.TMDBConfig, analyticsCfg config.AnalyticsConfig) *Service {
	return &Service{
		catalog:  catalog,
		store:    st,
		tracker:  tracker,
		pages:    tmdbCfg.PagesPerEndpoint,
		trendMin: analyticsCfg.TrendingPopularityMin,
		underrated: scoring.UnderratedThresholds{
			RatingMin:    analyticsCfg.UnderratedRatingMin,
			VoteCountMax: analyticsCfg.UnderratedVoteCountMax,
		},
	}
}

// Trigger enqueues an ingestion job and dispatches it in a background
// goroutine, returning the pending job immediately.
func (s *Service) Trigger(ctx context.Context) (*models.Job, error) {
	job, err := s.tracker.Enqueue(ctx, models.JobKindIngest)
	if err != nil {
		return nil, err
	}
	go s.Process(job)
	return job, nil
}

// source is one paginated upstream feed to drain during a run.
type source struct {
	name          string
	pages         int
	forceTrending bool
	fetch         func(ctx context.Context, page int) ([]tmdb.RawMovie, error)
}

// Process executes the ingestion run synchronously. Failures on a single page
// or record are logged and skipped; records already upserted stay committed.
func (s *Service) Process(job *models.Job) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in ingestion job", "job_id", job.ID, "error", r)
			s.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.tracker.MarkRunning(ctx, job.ID); err != nil {
		slog.Error("marking job running failed", "job_id", job.ID, "error", err)
		return
	}

	// Genre names for list records, which only carry genre IDs. A failure here
	// degrades to empty names; details fetches fill most of them in anyway.
	genreNames := make(map[int]string)
	if genres, err := s.catalog.Genres(ctx); err != nil {
		slog.Warn("fetching genre list failed", "error", err)
	} else {
		for _, g := range genres {
			genreNames[g.ID] = g.Name
		}
	}

	sources := []source{
		{name: tmdb.EndpointPopular, pages: s.pages, fetch: func(ctx context.Context, p int) ([]tmdb.RawMovie, error) {
			return s.catalog.ListPage(ctx, tmdb.EndpointPopular, p)
		}},
		{name: tmdb.EndpointTopRated, pages: s.pages, fetch: func(ctx context.Context, p int) ([]tmdb.RawMovie, error) {
			return s.catalog.ListPage(ctx, tmdb.EndpointTopRated, p)
		}},
		{name: tmdb.EndpointNowPlaying, pages: s.pages, fetch: func(ctx context.Context, p int) ([]tmdb.RawMovie, error) {
			return s.catalog.ListPage(ctx, tmdb.EndpointNowPlaying, p)
		}},
		{name: tmdb.EndpointUpcoming, pages: s.pages, fetch: func(ctx context.Context, p int) ([]tmdb.RawMovie, error) {
			return s.catalog.ListPage(ctx, tmdb.EndpointUpcoming, p)
		}},
		{name: "trending_week", pages: s.pages, forceTrending: true, fetch: s.catalog.TrendingWeek},
		{name: "discover", pages: s.pages, fetch: func(ctx context.Context, p int) ([]tmdb.RawMovie, error) {
			return s.catalog.Discover(ctx, "popularity.desc", p)
		}},
	}

	total := 0
	fetchErrs := 0
	for _, src := range sources {
		for page := 1; page <= src.pages; page++ {
			records, err := src.fetch(ctx, page)
			if err != nil {
				slog.Warn("fetching catalog page failed", "source", src.name, "page", page, "error", err)
				fetchErrs++
				break
			}
			if len(records) == 0 {
				break
			}
			for _, raw := range records {
				if err := s.upsertRecord(ctx, raw, genreNames, src.forceTrending); err != nil {
					slog.Warn("upserting record failed", "source", src.name, "movie_id", raw.ID, "error", err)
					continue
				}
				total++
			}
		}
	}

	if total == 0 && fetchErrs > 0 {
		s.fail(ctx, job, fmt.Errorf("ingestion produced no records after %d fetch failures", fetchErrs))
		return
	}

	if err := s.tracker.MarkSucceeded(ctx, job.ID, total); err != nil {
		slog.Error("marking job succeeded failed", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("ingestion finished", "job_id", job.ID, "records", total, "page_failures", fetchErrs)
}

// upsertRecord maps one raw record to a Movie, enriches it with detail fields
// where available, recomputes the inline flags, and upserts by catalog ID.
func (s *Service) upsertRecord(ctx context.Context, raw tmdb.RawMovie, genreNames map[int]string, forceTrending bool) error {
	if raw.ID == 0 {
		return fmt.Errorf("record without catalog ID")
	}

	title := raw.Title
	if title == "" {
		title = raw.OriginalTitle
	}

	movie := &models.Movie{
		ID:         raw.ID,
		Title:      title,
		Rating:     raw.VoteAverage,
		VoteCount:  raw.VoteCount,
		Popularity: raw.Popularity,
	}
	if raw.Overview != "" {
		movie.Overview = &raw.Overview
	}
	if raw.PosterPath != "" {
		movie.PosterPath = &raw.PosterPath
	}
	if raw.BackdropPath != "" {
		movie.BackdropPath = &raw.BackdropPath
	}
	if d, err := time.Parse("2006-01-02", raw.ReleaseDate); err == nil {
		movie.ReleaseDate = &d
	}

	movie.Genres = make([]models.Genre, 0, len(raw.GenreIDs))
	for _, gid := range raw.GenreIDs {
		movie.Genres = append(movie.Genres, models.Genre{ID: gid, Name: genreNames[gid]})
	}

	// Detail fetch failures degrade to the list data.
	if details, err := s.catalog.MovieDetails(ctx, raw.ID); err != nil {
		slog.Warn("fetching movie details failed", "movie_id", raw.ID, "error", err)
	} else {
		if details.Runtime > 0 {
			movie.Runtime = &details.Runtime
		}
		if details.Budget > 0 {
			movie.Budget = &details.Budget
		}
		if details.Revenue > 0 {
			movie.Revenue = &details.Revenue
		}
		if details.Tagline != "" {
			movie.Tagline = &details.Tagline
		}
		if details.Status != "" {
			movie.Status = &details.Status
		}
		if len(details.Genres) > 0 {
			movie.Genres = details.Genres
		}
		if details.VoteAverage > 0 {
			movie.Rating = details.VoteAverage
		}
		if details.VoteCount > 0 {
			movie.VoteCount = details.VoteCount
		}
		if details.Popularity > 0 {
			movie.Popularity = details.Popularity
		}
	}

	movie.IsTrending = forceTrending || scoring.IsTrending(movie.Popularity, s.trendMin)
	movie.IsUnderrated = scoring.IsUnderrated(movie.Rating, movie.VoteCount, s.underrated)

	return s.store.UpsertMovie(ctx, movie)
}

func (s *Service) fail(ctx context.Context, job *models.Job, cause error) {
	slog.Error("ingestion job failed", "job_id", job.ID, "error", cause)
	if err := s.tracker.MarkFailed(ctx, job.ID, cause); err != nil {
		slog.Error("marking job failed failed", "job_id", job.ID, "error", err)
	}
}
