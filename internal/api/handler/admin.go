package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moviemetric/moviemetric/internal/api/response"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// IngestTriggerer starts an ingestion run.
type IngestTriggerer interface {
	Trigger(ctx context.Context) (*models.Job, error)
}

// ComputeTriggerer starts compute runs for one or all artifact kinds.
type ComputeTriggerer interface {
	Trigger(ctx context.Context, kind string, asOf time.Time) (*models.Job, error)
	TriggerAll(ctx context.Context, asOf time.Time) ([]*models.Job, error)
}

// SearchRebuilder starts a full search index rebuild.
type SearchRebuilder interface {
	TriggerRebuild(ctx context.Context) (*models.Job, error)
}

// JobGetter reads a job record by its token.
type JobGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// computeKinds maps URL path segments to artifact kinds.
var computeKinds = map[string]string{
	"trending":          models.ArtifactTrending,
	"genre-stats":       models.ArtifactGenreStats,
	"ratings-by-decade": models.ArtifactRatingsByDecade,
	"recommendations":   models.ArtifactRecommendations,
}

// NewIngestHandler returns an http.HandlerFunc for POST /api/v1/admin/ingest/run.
// The run happens in the background; the response carries the job token to poll.
func NewIngestHandler(svc IngestTriggerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.Trigger(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.Accepted(w, jobView(job))
	}
}

// NewComputeHandler returns an http.HandlerFunc for POST /api/v1/admin/compute/{kind}.
func NewComputeHandler(svc ComputeTriggerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := computeKinds[chi.URLParam(r, "kind")]
		if !ok {
			response.Error(w, http.StatusNotFound, "UNKNOWN_KIND", "Unknown compute kind", nil)
			return
		}

		job, err := svc.Trigger(r.Context(), kind, time.Now().UTC())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.Accepted(w, jobView(job))
	}
}

// NewComputeAllHandler returns an http.HandlerFunc for POST /api/v1/admin/compute/all.
// One job per artifact kind is enqueued; they run sequentially in the background.
func NewComputeAllHandler(svc ComputeTriggerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enqueued, err := svc.TriggerAll(r.Context(), time.Now().UTC())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		views := make([]map[string]any, 0, len(enqueued))
		for _, job := range enqueued {
			views = append(views, jobView(job))
		}
		response.Accepted(w, map[string]any{"jobs": views})
	}
}

// NewSearchRebuildHandler returns an http.HandlerFunc for POST /api/v1/admin/search/rebuild.
func NewSearchRebuildHandler(svc SearchRebuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.TriggerRebuild(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.Accepted(w, jobView(job))
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/admin/jobs/{jobID}.
// An unknown token is a 404, never reported as pending.
func NewJobStatusHandler(tracker JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		job, err := tracker.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		view := jobView(job)
		if job.RowCount != nil {
			view["row_count"] = *job.RowCount
		}
		if job.ErrorMessage != nil {
			view["error_message"] = *job.ErrorMessage
		}
		if job.StartedAt != nil {
			view["started_at"] = job.StartedAt
		}
		if job.FinishedAt != nil {
			view["finished_at"] = job.FinishedAt
		}
		response.JSON(w, view)
	}
}

func jobView(job *models.Job) map[string]any {
	return map[string]any{
		"job_id":     job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
}
