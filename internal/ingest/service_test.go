package ingest_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moviemetric/moviemetric/internal/config"
	"github.com/moviemetric/moviemetric/internal/ingest"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/internal/tmdb"
	"github.com/moviemetric/moviemetric/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake catalog client ---

type fakeCatalog struct {
	pages      map[string][]tmdb.RawMovie
	details    map[int64]*tmdb.MovieDetails
	genres     []models.Genre
	failAll    bool
	detailsErr error
}

func (f *fakeCatalog) ListPage(_ context.Context, endpoint string, page int) ([]tmdb.RawMovie, error) {
	return f.page(endpoint, page)
}

func (f *fakeCatalog) TrendingWeek(_ context.Context, page int) ([]tmdb.RawMovie, error) {
	return f.page("trending_week", page)
}

func (f *fakeCatalog) Discover(_ context.Context, _ string, page int) ([]tmdb.RawMovie, error) {
	return f.page("discover", page)
}

func (f *fakeCatalog) page(endpoint string, page int) ([]tmdb.RawMovie, error) {
	if f.failAll {
		return nil, tmdb.ErrUpstreamUnreachable
	}
	if page > 1 {
		return nil, nil
	}
	return f.pages[endpoint], nil
}

func (f *fakeCatalog) Genres(_ context.Context) ([]models.Genre, error) {
	if f.failAll {
		return nil, tmdb.ErrUpstreamUnreachable
	}
	return f.genres, nil
}

func (f *fakeCatalog) MovieDetails(_ context.Context, id int64) (*tmdb.MovieDetails, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	d, ok := f.details[id]
	if !ok {
		return nil, tmdb.ErrUpstreamStatus
	}
	return d, nil
}

// --- in-memory store ---

type memStore struct {
	mu     sync.Mutex
	movies map[int64]*models.Movie
	jobs   map[uuid.UUID]*models.Job
}

func newMemStore() *memStore {
	return &memStore{
		movies: make(map[int64]*models.Movie),
		jobs:   make(map[uuid.UUID]*models.Job),
	}
}

func (s *memStore) Ping(_ context.Context) error { return nil }

func (s *memStore) UpsertMovie(_ context.Context, m *models.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
	return nil
}

func (s *memStore) GetMovie(_ context.Context, id int64) (*models.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (s *memStore) ListMovies(_ context.Context, _ store.MovieFilter) ([]*models.Movie, int, error) {
	return nil, 0, nil
}

func (s *memStore) ListAllMovies(_ context.Context) ([]*models.Movie, error) {
	return nil, nil
}

func (s *memStore) PutArtifact(_ context.Context, _ string, _ time.Time, _ json.RawMessage, _ int) error {
	return nil
}

func (s *memStore) GetArtifact(_ context.Context, _ string, _ time.Time) (*models.Artifact, error) {
	return nil, store.ErrNotFound
}

func (s *memStore) GetLatestArtifact(_ context.Context, _ string) (*models.Artifact, error) {
	return nil, store.ErrNotFound
}

func (s *memStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.Status = status
	return nil
}

// --- no-op cache ---

type noopCache struct{}

func (noopCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (noopCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (noopCache) Delete(_ context.Context, _ string) error                         { return nil }
func (noopCache) Ping(_ context.Context) error                                     { return nil }
func (noopCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (noopCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (noopCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

// --- helpers ---

func newTestService(st *memStore, catalog tmdb.Client) (*ingest.Service, *jobs.Tracker) {
	tracker := jobs.NewTracker(st, noopCache{})
	tmdbCfg := config.TMDBConfig{PagesPerEndpoint: 2}
	analyticsCfg := config.AnalyticsConfig{
		TrendingPopularityMin:  50,
		UnderratedRatingMin:    7.5,
		UnderratedVoteCountMax: 1000,
	}
	return ingest.NewService(catalog, st, tracker, tmdbCfg, analyticsCfg), tracker
}

func rawMovie(id int64, title string, rating float64, voteCount int, popularity float64) tmdb.RawMovie {
	return tmdb.RawMovie{
		ID:          id,
		Title:       title,
		Overview:    "an overview",
		ReleaseDate: "2024-03-15",
		GenreIDs:    []int{28},
		VoteAverage: rating,
		VoteCount:   voteCount,
		Popularity:  popularity,
	}
}

// --- tests ---

func TestProcess_UpsertsRecordsAndSucceeds(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {rawMovie(1, "First", 6.0, 2000, 80)},
		},
		genres: []models.Genre{{ID: 28, Name: "Action"}},
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, stored.Status)

	m, err := st.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "First", m.Title)
	assert.Equal(t, 6.0, m.Rating)
	require.NotNil(t, m.ReleaseDate)
	assert.Equal(t, 2024, m.ReleaseDate.Year())
	require.Len(t, m.Genres, 1)
	assert.Equal(t, "Action", m.Genres[0].Name, "genre names resolve through the genre list")
}

func TestProcess_SetsFlagsFromThresholds(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {
				rawMovie(1, "Blockbuster", 6.0, 20000, 90),
				rawMovie(2, "Hidden Gem", 9.0, 3, 5),
			},
		},
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	blockbuster, err := st.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, blockbuster.IsTrending)
	assert.False(t, blockbuster.IsUnderrated)

	gem, err := st.GetMovie(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, gem.IsTrending)
	assert.True(t, gem.IsUnderrated, "9.0 rating with 3 votes is underrated")
}

func TestProcess_TrendingFeedForcesFlag(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			// Low popularity, but delivered by the trending feed.
			"trending_week": {rawMovie(7, "Weekly Pick", 6.0, 500, 10)},
		},
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	m, err := st.GetMovie(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, m.IsTrending)
}

func TestProcess_DetailEnrichment(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {rawMovie(1, "Enriched", 6.0, 2000, 80)},
		},
		details: map[int64]*tmdb.MovieDetails{
			1: {ID: 1, Runtime: 120, Budget: 1000000, Tagline: "A tagline", Status: "Released"},
		},
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	m, err := st.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, m.Runtime)
	assert.Equal(t, 120, *m.Runtime)
	require.NotNil(t, m.Tagline)
	assert.Equal(t, "A tagline", *m.Tagline)
}

func TestProcess_DetailFailureDegradesToListData(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {rawMovie(1, "ListOnly", 6.0, 2000, 80)},
		},
		detailsErr: tmdb.ErrUpstreamUnreachable,
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, stored.Status)

	m, err := st.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ListOnly", m.Title)
	assert.Nil(t, m.Runtime)
}

func TestProcess_RecordWithoutIDSkipped(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {
				{Title: "No ID"},
				rawMovie(2, "Valid", 6.0, 100, 30),
			},
		},
	}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, stored.Status)

	_, err = st.GetMovie(context.Background(), 2)
	assert.NoError(t, err)
	assert.Len(t, st.movies, 1)
}

func TestProcess_TotalFetchFailureFailsJob(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{failAll: true}
	svc, tracker := newTestService(st, catalog)

	job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
	require.NoError(t, err)
	svc.Process(job)

	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Empty(t, st.movies)
}

func TestProcess_Idempotent(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.RawMovie{
			"popular": {rawMovie(1, "Stable", 6.0, 2000, 80)},
		},
	}
	svc, tracker := newTestService(st, catalog)

	for i := 0; i < 2; i++ {
		job, err := tracker.Enqueue(context.Background(), models.JobKindIngest)
		require.NoError(t, err)
		svc.Process(job)
	}

	assert.Len(t, st.movies, 1, "repeated runs over the same source converge")
}

func TestTrigger_ReturnsPendingJob(t *testing.T) {
	st := newMemStore()
	catalog := &fakeCatalog{}
	svc, tracker := newTestService(st, catalog)

	job, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.JobKindIngest, job.Kind)

	// The background run drives the job to a terminal state.
	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, err := tracker.Get(context.Background(), job.ID)
		require.NoError(t, err)
		if stored.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached a terminal state")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
