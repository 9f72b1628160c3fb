// Package analytics holds the batch compute jobs that turn the raw catalog
// into precomputed artifacts: trending ranks, genre aggregates, decade
// aggregates, and per-movie recommendations.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/moviemetric/moviemetric/internal/scoring"
	"github.com/moviemetric/moviemetric/pkg/models"
)

// ComputeTrending ranks movies by trending score descending and keeps the top
// N. Ties break by higher vote count, then by lower movie ID, so the output
// order is fully deterministic.
func ComputeTrending(movies []*models.Movie, asOf time.Time, topN int) []models.TrendingRow {
	type scored struct {
		movie *models.Movie
		score float64
	}

	ranked := make([]scored, 0, len(movies))
	for _, m := range movies {
		ranked = append(ranked, scored{
			movie: m,
			score: scoring.TrendingScore(m.Popularity, m.Rating, m.VoteCount, recencyDays(m, asOf)),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].movie.VoteCount != ranked[j].movie.VoteCount {
			return ranked[i].movie.VoteCount > ranked[j].movie.VoteCount
		}
		return ranked[i].movie.ID < ranked[j].movie.ID
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	rows := make([]models.TrendingRow, 0, len(ranked))
	for i, r := range ranked {
		rows = append(rows, models.TrendingRow{
			MovieID: r.movie.ID,
			Title:   r.movie.Title,
			Score:   r.score,
			Rank:    i + 1,
		})
	}
	return rows
}

// recencyDays returns how many days before asOf the movie was released. An
// unknown release date counts as fresh so the score carries no decay.
func recencyDays(m *models.Movie, asOf time.Time) int {
	if m.ReleaseDate == nil {
		return 0
	}
	days := int(asOf.Sub(*m.ReleaseDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ComputeGenreStats aggregates per-genre movie count and mean rating. Genres
// with zero movies never produce a row. Rows sort by movie count descending,
// then genre ID ascending.
func ComputeGenreStats(movies []*models.Movie) []models.GenreStatsRow {
	type agg struct {
		name      string
		count     int
		ratingSum float64
	}
	byGenre := make(map[int]*agg)

	for _, m := range movies {
		for _, g := range m.Genres {
			a, ok := byGenre[g.ID]
			if !ok {
				a = &agg{name: g.Name}
				byGenre[g.ID] = a
			}
			if a.name == "" {
				a.name = g.Name
			}
			a.count++
			a.ratingSum += m.Rating
		}
	}

	rows := make([]models.GenreStatsRow, 0, len(byGenre))
	for id, a := range byGenre {
		rows = append(rows, models.GenreStatsRow{
			GenreID:    id,
			GenreName:  a.name,
			MovieCount: a.count,
			AvgRating:  a.ratingSum / float64(a.count),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MovieCount != rows[j].MovieCount {
			return rows[i].MovieCount > rows[j].MovieCount
		}
		return rows[i].GenreID < rows[j].GenreID
	})
	return rows
}

// ComputeRatingsByDecade buckets movies by release decade and emits the mean
// rating and count per bucket, ascending by decade. Movies without a release
// date are skipped, so empty decades are never emitted.
func ComputeRatingsByDecade(movies []*models.Movie) []models.DecadeRow {
	type agg struct {
		count     int
		ratingSum float64
	}
	byDecade := make(map[int]*agg)

	for _, m := range movies {
		if m.ReleaseDate == nil {
			continue
		}
		decade := m.ReleaseYear() / 10 * 10
		a, ok := byDecade[decade]
		if !ok {
			a = &agg{}
			byDecade[decade] = a
		}
		a.count++
		a.ratingSum += m.Rating
	}

	rows := make([]models.DecadeRow, 0, len(byDecade))
	for decade, a := range byDecade {
		rows = append(rows, models.DecadeRow{
			Decade:     decade,
			MovieCount: a.count,
			AvgRating:  a.ratingSum / float64(a.count),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Decade < rows[j].Decade
	})
	return rows
}

// ComputeRecommendations scores each movie against a candidate pool restricted
// to movies sharing at least one genre, keeping the top K above minScore.
// Ties break by higher popularity, then lower movie ID. Movies without genres
// produce no row. Rows sort by movie ID ascending.
func ComputeRecommendations(movies []*models.Movie, topK int, minScore float64) []models.RecommendationRow {
	// Genre index bounds the candidate pool; no full pairwise pass.
	byGenre := make(map[int][]*models.Movie)
	for _, m := range movies {
		for _, g := range m.Genres {
			byGenre[g.ID] = append(byGenre[g.ID], m)
		}
	}

	rows := make([]models.RecommendationRow, 0, len(movies))
	for _, m := range movies {
		if len(m.Genres) == 0 {
			continue
		}

		seen := map[int64]struct{}{m.ID: {}}
		type scored struct {
			movie *models.Movie
			score float64
		}
		var candidates []scored

		for _, g := range m.Genres {
			for _, other := range byGenre[g.ID] {
				if _, dup := seen[other.ID]; dup {
					continue
				}
				seen[other.ID] = struct{}{}

				score := roundScore(scoring.Similarity(m, other))
				if score > minScore {
					candidates = append(candidates, scored{movie: other, score: score})
				}
			}
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			if candidates[i].movie.Popularity != candidates[j].movie.Popularity {
				return candidates[i].movie.Popularity > candidates[j].movie.Popularity
			}
			return candidates[i].movie.ID < candidates[j].movie.ID
		})

		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		if len(candidates) == 0 {
			continue
		}

		recs := make([]models.RecommendedMovie, 0, len(candidates))
		for _, c := range candidates {
			recs = append(recs, models.RecommendedMovie{
				MovieID: c.movie.ID,
				Title:   c.movie.Title,
				Score:   c.score,
			})
		}
		rows = append(rows, models.RecommendationRow{MovieID: m.ID, Recommendations: recs})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].MovieID < rows[j].MovieID
	})
	return rows
}

// roundScore fixes similarity scores to four decimal places so stored
// artifacts are stable across runs.
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
