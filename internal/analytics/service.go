package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moviemetric/moviemetric/internal/config"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// Sentinel errors for compute job failures.
var (
	ErrSourceUnavailable = errors.New("source repository unavailable")
	ErrUnknownKind       = errors.New("unknown compute kind")
)

// Service runs the compute jobs. Each run reads a full catalog snapshot,
// applies the scoring functions, and replaces the artifact for
// (kind, as_of_date) atomically. A failed run leaves the prior artifact
// untouched.
type Service struct {
	store   store.Store
	tracker *jobs.Tracker
	cfg     config.AnalyticsConfig
}

// NewService creates a new compute Service.
func NewService(st store.Store, tracker *jobs.Tracker, cfg config.AnalyticsConfig) *Service {
	return &Service{store: st, tracker: tracker, cfg: cfg}
}

// Trigger enqueues a compute job of the given kind and dispatches it in a
// background goroutine. Returns the pending job immediately; completion is
// observed only via the tracker.
func (s *Service) Trigger(ctx context.Context, kind string, asOf time.Time) (*models.Job, error) {
	if !models.ValidArtifactKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	job, err := s.tracker.Enqueue(ctx, kind)
	if err != nil {
		return nil, err
	}

	go s.Process(job, asOf)

	return job, nil
}

// TriggerAll enqueues one job per artifact kind and runs them in order in a
// single background goroutine. The jobs are independent: one failing does not
// stop the rest, and each reports through its own record.
func (s *Service) TriggerAll(ctx context.Context, asOf time.Time) ([]*models.Job, error) {
	enqueued := make([]*models.Job, 0, len(models.ArtifactKinds))
	for _, kind := range models.ArtifactKinds {
		job, err := s.tracker.Enqueue(ctx, kind)
		if err != nil {
			return nil, err
		}
		enqueued = append(enqueued, job)
	}

	go func() {
		for _, job := range enqueued {
			s.Process(job, asOf)
		}
	}()

	return enqueued, nil
}

// Process executes one compute job synchronously and always drives its record
// to a terminal state, recovering from panics.
func (s *Service) Process(job *models.Job, asOf time.Time) {
	ctx := context.Background()
	asOf = truncateToDate(asOf)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in compute job", "kind", job.Kind, "job_id", job.ID, "error", r)
			s.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.tracker.MarkRunning(ctx, job.ID); err != nil {
		slog.Error("marking job running failed", "job_id", job.ID, "error", err)
		return
	}

	movies, err := s.store.ListAllMovies(ctx)
	if err != nil {
		s.fail(ctx, job, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		return
	}

	rows, count, err := s.computeRows(job.Kind, movies, asOf)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	if err := s.store.PutArtifact(ctx, job.Kind, asOf, rows, count); err != nil {
		s.fail(ctx, job, fmt.Errorf("writing artifact: %w", err))
		return
	}

	if err := s.tracker.MarkSucceeded(ctx, job.ID, count); err != nil {
		slog.Error("marking job succeeded failed", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("compute job finished", "kind", job.Kind, "job_id", job.ID,
		"as_of", asOf.Format("2006-01-02"), "rows", count)
}

func (s *Service) computeRows(kind string, movies []*models.Movie, asOf time.Time) (json.RawMessage, int, error) {
	var result any
	var count int

	switch kind {
	case models.ArtifactTrending:
		rows := ComputeTrending(movies, asOf, s.cfg.TrendingTopN)
		result, count = rows, len(rows)
	case models.ArtifactGenreStats:
		rows := ComputeGenreStats(movies)
		result, count = rows, len(rows)
	case models.ArtifactRatingsByDecade:
		rows := ComputeRatingsByDecade(movies)
		result, count = rows, len(rows)
	case models.ArtifactRecommendations:
		rows := ComputeRecommendations(movies, s.cfg.RecommendationTopK, s.cfg.RecommendationMinScore)
		result, count = rows, len(rows)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding artifact rows: %w", err)
	}
	return encoded, count, nil
}

func (s *Service) fail(ctx context.Context, job *models.Job, cause error) {
	slog.Error("compute job failed", "kind", job.Kind, "job_id", job.ID, "error", cause)
	if err := s.tracker.MarkFailed(ctx, job.ID, cause); err != nil {
		slog.Error("marking job failed failed", "job_id", job.ID, "error", err)
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
