// Package search maintains the full-text index. The core never depends on it
// for correctness; documents are derived from stored movies and pushed in bulk.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meilisearch/meilisearch-go"

	"github.com/moviemetric/moviemetric/internal/config"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// Document is the searchable projection of a movie.
type Document struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	ReleaseYear int      `json:"release_year,omitempty"`
	Genres      []string `json:"genres"`
	VoteAverage float64  `json:"vote_average"`
	VoteCount   int      `json:"vote_count"`
	Popularity  float64  `json:"popularity"`
}

// Service builds and queries the movie search index.
type Service struct {
	client  meilisearch.ServiceManager
	store   store.Store
	tracker *jobs.Tracker
	index   string
}

// NewService creates a new search Service.
func NewService(cfg config.SearchConfig, st store.Store, tracker *jobs.Tracker) *Service {
	client := meilisearch.New(cfg.URL, meilisearch.WithAPIKey(cfg.MasterKey))
	return &Service{
		client:  client,
		store:   st,
		tracker: tracker,
		index:   cfg.Index,
	}
}

// TriggerRebuild enqueues a full index rebuild and dispatches it in a
// background goroutine, returning the pending job immediately.
func (s *Service) TriggerRebuild(ctx context.Context) (*models.Job, error) {
	job, err := s.tracker.Enqueue(ctx, models.JobKindSearchRebuild)
	if err != nil {
		return nil, err
	}
	go s.Process(job)
	return job, nil
}

// Process executes the rebuild synchronously: reads all movies and bulk-upserts
// their documents.
func (s *Service) Process(job *models.Job) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in search rebuild", "job_id", job.ID, "error", r)
			s.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.tracker.MarkRunning(ctx, job.ID); err != nil {
		slog.Error("marking job running failed", "job_id", job.ID, "error", err)
		return
	}

	movies, err := s.store.ListAllMovies(ctx)
	if err != nil {
		s.fail(ctx, job, fmt.Errorf("reading movies: %w", err))
		return
	}

	docs := make([]Document, 0, len(movies))
	for _, m := range movies {
		docs = append(docs, movieToDocument(m))
	}

	idx := s.client.Index(s.index)
	if _, err := idx.UpdateSettingsWithContext(ctx, &meilisearch.Settings{
		SearchableAttributes: []string{"title", "overview", "genres"},
		FilterableAttributes: []string{"release_year", "genres", "vote_average", "vote_count", "popularity"},
		SortableAttributes:   []string{"release_year", "vote_average", "vote_count", "popularity"},
	}); err != nil {
		s.fail(ctx, job, fmt.Errorf("updating index settings: %w", err))
		return
	}

	if _, err := idx.AddDocumentsWithContext(ctx, docs, "id"); err != nil {
		s.fail(ctx, job, fmt.Errorf("adding documents: %w", err))
		return
	}

	if err := s.tracker.MarkSucceeded(ctx, job.ID, len(docs)); err != nil {
		slog.Error("marking job succeeded failed", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("search index rebuilt", "job_id", job.ID, "documents", len(docs))
}

// IndexMovie upserts a single movie document.
func (s *Service) IndexMovie(ctx context.Context, m *models.Movie) error {
	doc := movieToDocument(m)
	if _, err := s.client.Index(s.index).AddDocumentsWithContext(ctx, []Document{doc}, "id"); err != nil {
		return fmt.Errorf("indexing movie %d: %w", m.ID, err)
	}
	return nil
}

// Search runs a keyword query against the index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]any, error) {
	resp, err := s.client.Index(s.index).SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return resp.Hits, nil
}

func (s *Service) fail(ctx context.Context, job *models.Job, cause error) {
	slog.Error("search rebuild failed", "job_id", job.ID, "error", cause)
	if err := s.tracker.MarkFailed(ctx, job.ID, cause); err != nil {
		slog.Error("marking job failed failed", "job_id", job.ID, "error", err)
	}
}

func movieToDocument(m *models.Movie) Document {
	doc := Document{
		ID:          m.ID,
		Title:       m.Title,
		ReleaseYear: m.ReleaseYear(),
		VoteAverage: m.Rating,
		VoteCount:   m.VoteCount,
		Popularity:  m.Popularity,
	}
	if m.Overview != nil {
		doc.Overview = *m.Overview
	}
	doc.Genres = make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		if g.Name != "" {
			doc.Genres = append(doc.Genres, g.Name)
		}
	}
	return doc
}
