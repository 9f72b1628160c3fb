package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/moviemetric/moviemetric/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	UpsertMovie(ctx context.Context, movie *models.Movie) error
	GetMovie(ctx context.Context, id int64) (*models.Movie, error)
	ListMovies(ctx context.Context, filter MovieFilter) ([]*models.Movie, int, error)
	// ListAllMovies reads the full catalog in a single statement, so compute
	// jobs see a consistent snapshot even while ingestion is writing.
	ListAllMovies(ctx context.Context) ([]*models.Movie, error)

	PutArtifact(ctx context.Context, kind string, asOfDate time.Time, rows json.RawMessage, rowCount int) error
	GetArtifact(ctx context.Context, kind string, asOfDate time.Time) (*models.Artifact, error)
	GetLatestArtifact(ctx context.Context, kind string) (*models.Artifact, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

type MovieFilter struct {
	Trending   *bool
	Underrated *bool
	Page       int
	Limit      int
}

type jobUpdateParams struct {
	ErrorMessage *string
	RowCount     *int
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithRowCount(n int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.RowCount = &n
	}
}
