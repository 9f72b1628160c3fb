package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Artifact kinds. One artifact exists per (kind, as_of_date); a recompute for
// the same date replaces the prior rows atomically.
const (
	ArtifactTrending        = "trending"
	ArtifactGenreStats      = "genre_stats"
	ArtifactRatingsByDecade = "ratings_by_decade"
	ArtifactRecommendations = "recommendations"
)

// ArtifactKinds lists all artifact kinds in the order ComputeAll runs them.
var ArtifactKinds = []string{
	ArtifactTrending,
	ArtifactGenreStats,
	ArtifactRatingsByDecade,
	ArtifactRecommendations,
}

// Artifact is a precomputed analytics snapshot. Rows holds the kind-specific
// row sequence as JSON; see the *Row types below for the per-kind schemas.
type Artifact struct {
	ID        uuid.UUID       `db:"id"         json:"id"`
	Kind      string          `db:"kind"       json:"kind"`
	AsOfDate  time.Time       `db:"as_of_date" json:"as_of_date"`
	Rows      json.RawMessage `db:"rows"       json:"rows"`
	RowCount  int             `db:"row_count"  json:"row_count"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TrendingRow is one entry of a trending artifact, ranked from 1.
type TrendingRow struct {
	MovieID int64   `json:"movie_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// GenreStatsRow aggregates one genre. Genres with no movies are never emitted.
type GenreStatsRow struct {
	GenreID    int     `json:"genre_id"`
	GenreName  string  `json:"genre_name"`
	MovieCount int     `json:"movie_count"`
	AvgRating  float64 `json:"avg_rating"`
}

// DecadeRow aggregates movies released in one decade (e.g. 1990, 2000).
type DecadeRow struct {
	Decade     int     `json:"decade"`
	MovieCount int     `json:"movie_count"`
	AvgRating  float64 `json:"avg_rating"`
}

// RecommendationRow holds the top-K recommendations for one movie.
type RecommendationRow struct {
	MovieID         int64              `json:"movie_id"`
	Recommendations []RecommendedMovie `json:"recommendations"`
}

// RecommendedMovie is one recommended title with its similarity score.
type RecommendedMovie struct {
	MovieID int64   `json:"movie_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// ValidArtifactKind reports whether kind names a known artifact kind.
func ValidArtifactKind(kind string) bool {
	for _, k := range ArtifactKinds {
		if k == kind {
			return true
		}
	}
	return false
}
