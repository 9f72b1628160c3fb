package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const movieColumns = `id, title, overview, release_date, genres, rating, vote_count, popularity,
	 poster_path, backdrop_path, runtime, budget, revenue, tagline, status,
	 is_trending, is_underrated, created_at, updated_at`

// --- Movies ---

func (s *PostgresStore) UpsertMovie(ctx context.Context, movie *models.Movie) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO movies (id, title, overview, release_date, genres, rating, vote_count, popularity,
		   poster_path, backdrop_path, runtime, budget, revenue, tagline, status,
		   is_trending, is_underrated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   overview = EXCLUDED.overview,
		   release_date = EXCLUDED.release_date,
		   genres = EXCLUDED.genres,
		   rating = EXCLUDED.rating,
		   vote_count = EXCLUDED.vote_count,
		   popularity = EXCLUDED.popularity,
		   poster_path = EXCLUDED.poster_path,
		   backdrop_path = EXCLUDED.backdrop_path,
		   runtime = COALESCE(EXCLUDED.runtime, movies.runtime),
		   budget = COALESCE(EXCLUDED.budget, movies.budget),
		   revenue = COALESCE(EXCLUDED.revenue, movies.revenue),
		   tagline = COALESCE(EXCLUDED.tagline, movies.tagline),
		   status = COALESCE(EXCLUDED.status, movies.status),
		   is_trending = EXCLUDED.is_trending,
		   is_underrated = EXCLUDED.is_underrated,
		   updated_at = NOW()`,
		movie.ID, movie.Title, movie.Overview, movie.ReleaseDate, movie.Genres,
		movie.Rating, movie.VoteCount, movie.Popularity,
		movie.PosterPath, movie.BackdropPath, movie.Runtime, movie.Budget, movie.Revenue,
		movie.Tagline, movie.Status, movie.IsTrending, movie.IsUnderrated)
	if err != nil {
		return fmt.Errorf("upsert movie: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMovie(ctx context.Context, id int64) (*models.Movie, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	m, err := scanMovie(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMovies(ctx context.Context, filter MovieFilter) ([]*models.Movie, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Trending != nil {
		conditions = append(conditions, fmt.Sprintf("is_trending = $%d", argIdx))
		args = append(args, *filter.Trending)
		argIdx++
	}
	if filter.Underrated != nil {
		conditions = append(conditions, fmt.Sprintf("is_underrated = $%d", argIdx))
		args = append(args, *filter.Underrated)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM movies WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT `+movieColumns+` FROM movies WHERE %s
		 ORDER BY popularity DESC, id ASC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	movies, err := scanMovies(rows)
	if err != nil {
		return nil, 0, err
	}
	return movies, total, rows.Err()
}

func (s *PostgresStore) ListAllMovies(ctx context.Context) ([]*models.Movie, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+movieColumns+` FROM movies ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all movies: %w", err)
	}
	defer rows.Close()

	movies, err := scanMovies(rows)
	if err != nil {
		return nil, err
	}
	return movies, rows.Err()
}

func scanMovies(rows pgx.Rows) ([]*models.Movie, error) {
	var movies []*models.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, nil
}

func scanMovie(row pgx.Row) (*models.Movie, error) {
	var m models.Movie
	err := row.Scan(&m.ID, &m.Title, &m.Overview, &m.ReleaseDate, &m.Genres,
		&m.Rating, &m.VoteCount, &m.Popularity,
		&m.PosterPath, &m.BackdropPath, &m.Runtime, &m.Budget, &m.Revenue,
		&m.Tagline, &m.Status, &m.IsTrending, &m.IsUnderrated,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Artifacts ---

// PutArtifact atomically replaces the artifact for (kind, asOfDate). The delete
// and insert run in one transaction under an advisory lock keyed by kind and
// date, so readers see either the old rows or the new rows, never a mix, and
// two concurrent replaces of the same artifact are serialized.
func (s *PostgresStore) PutArtifact(ctx context.Context, kind string, asOfDate time.Time, rowsJSON json.RawMessage, rowCount int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin artifact tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := kind + ":" + asOfDate.Format("2006-01-02")
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("acquire artifact lock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM artifacts WHERE kind = $1 AND as_of_date = $2`, kind, asOfDate); err != nil {
		return fmt.Errorf("delete prior artifact: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO artifacts (id, kind, as_of_date, rows, row_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.New(), kind, asOfDate, rowsJSON, rowCount); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit artifact tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, kind string, asOfDate time.Time) (*models.Artifact, error) {
	var a models.Artifact
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, as_of_date, rows, row_count, created_at
		 FROM artifacts WHERE kind = $1 AND as_of_date = $2`, kind, asOfDate,
	).Scan(&a.ID, &a.Kind, &a.AsOfDate, &a.Rows, &a.RowCount, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetLatestArtifact(ctx context.Context, kind string) (*models.Artifact, error) {
	var a models.Artifact
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, as_of_date, rows, row_count, created_at
		 FROM artifacts WHERE kind = $1
		 ORDER BY as_of_date DESC, created_at DESC LIMIT 1`, kind,
	).Scan(&a.ID, &a.Kind, &a.AsOfDate, &a.Rows, &a.RowCount, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest artifact: %w", err)
	}
	return &a, nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Kind, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, row_count, error_message, started_at, finished_at, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Kind, &j.Status, &j.RowCount, &j.ErrorMessage,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusSucceeded, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	// Validate transition. Terminal states have no outgoing edges.
	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusSucceeded || status == models.JobStatusFailed {
		query += fmt.Sprintf(", finished_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.RowCount != nil {
		query += fmt.Sprintf(", row_count = $%d", argIdx)
		args = append(args, *params.RowCount)
		argIdx++
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}
