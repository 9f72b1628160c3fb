package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job kinds. Compute kinds match the artifact kind they produce.
const (
	JobKindIngest          = "ingest"
	JobKindTrending        = ArtifactTrending
	JobKindGenreStats      = ArtifactGenreStats
	JobKindRatingsByDecade = ArtifactRatingsByDecade
	JobKindRecommendations = ArtifactRecommendations
	JobKindSearchRebuild   = "search_rebuild"
)

// Job tracks one background job run. The API returns the job ID on an admin
// trigger; the client polls GET /api/v1/admin/jobs/{jobID} until the status is
// succeeded or failed. Terminal states are never reopened.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Kind         string     `db:"kind"          json:"kind"`
	Status       string     `db:"status"        json:"status"`
	RowCount     *int       `db:"row_count"     json:"row_count,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at"   json:"finished_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
