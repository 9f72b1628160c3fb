// Package jobs tracks background job runs. Job records live in Postgres; the
// current status is mirrored into the cache so polling stays off the database.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/moviemetric/moviemetric/internal/cache"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// ErrNotFound is returned when a job token is unknown. It is distinct from a
// pending job: an unknown token never reads as pending.
var ErrNotFound = store.ErrNotFound

// Tracker records job state transitions. Created at process start and injected
// into every component that runs or polls jobs.
type Tracker struct {
	store store.Store
	cache cache.Cache
}

func NewTracker(st store.Store, c cache.Cache) *Tracker {
	return &Tracker{store: st, cache: c}
}

// Enqueue creates a pending job record and returns it.
func (t *Tracker) Enqueue(ctx context.Context, kind string) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	t.mirrorStatus(ctx, job.ID, models.JobStatusPending)
	return job, nil
}

// MarkRunning transitions a pending job to running.
func (t *Tracker) MarkRunning(ctx context.Context, id uuid.UUID) error {
	if err := t.store.UpdateJobStatus(ctx, id, models.JobStatusRunning); err != nil {
		return err
	}
	t.mirrorStatus(ctx, id, models.JobStatusRunning)
	return nil
}

// MarkSucceeded transitions a running job to succeeded with its row count.
func (t *Tracker) MarkSucceeded(ctx context.Context, id uuid.UUID, rowCount int) error {
	if err := t.store.UpdateJobStatus(ctx, id, models.JobStatusSucceeded,
		store.WithRowCount(rowCount)); err != nil {
		return err
	}
	t.mirrorStatus(ctx, id, models.JobStatusSucceeded)
	return nil
}

// MarkFailed transitions a running job to failed, capturing the error message.
func (t *Tracker) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	if err := t.store.UpdateJobStatus(ctx, id, models.JobStatusFailed,
		store.WithErrorMessage(cause.Error())); err != nil {
		return err
	}
	t.mirrorStatus(ctx, id, models.JobStatusFailed)
	return nil
}

// Get returns the current job snapshot for a token, or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return t.store.GetJob(ctx, id)
}

func (t *Tracker) mirrorStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := t.cache.SetJobStatus(ctx, id, status, statusCacheTTL); err != nil {
		slog.Warn("mirroring job status to cache failed", "job_id", id, "error", err)
	}
}
