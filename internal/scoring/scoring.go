// Package scoring holds the pure scoring functions used by the compute jobs
// and the ingestion flag recomputation. Given identical inputs the outputs are
// bit-for-bit reproducible: no randomness, no wall-clock reads.
package scoring

import (
	"math"

	"github.com/moviemetric/moviemetric/pkg/models"
)

// FreshnessWindowDays is the release age, in days, past which the trending
// score starts to decay.
const FreshnessWindowDays = 365

// Weights of the trending score components.
const (
	popularityWeight = 0.4
	ratingWeight     = 0.3
	voteWeight       = 0.3
)

// TrendingScore computes the trending score for one movie. It is monotonic
// non-decreasing in popularity, rating, and vote count, and monotonic
// non-increasing in release age beyond the freshness window.
func TrendingScore(popularity, rating float64, voteCount int, releaseRecencyDays int) float64 {
	base := popularity*popularityWeight +
		rating*20*ratingWeight +
		math.Log(float64(voteCount)+1)*10*voteWeight

	if releaseRecencyDays <= FreshnessWindowDays {
		return base
	}
	age := float64(releaseRecencyDays - FreshnessWindowDays)
	return base / (1 + age/FreshnessWindowDays)
}

// IsTrending reports whether a movie's current popularity clears the
// configured trending threshold. Used by ingestion to set the inline flag.
func IsTrending(popularity, popularityMin float64) bool {
	return popularity >= popularityMin
}

// UnderratedThresholds configures the underrated flag. Both values come from
// configuration, never hard-coded call sites.
type UnderratedThresholds struct {
	RatingMin    float64
	VoteCountMax int
}

// IsUnderrated reports whether a movie is high quality but low visibility:
// rated at or above the threshold while its vote count stays below the cap.
func IsUnderrated(rating float64, voteCount int, t UnderratedThresholds) bool {
	return rating >= t.RatingMin && voteCount < t.VoteCountMax
}

// Similarity scores how alike two movies are, in [0, 1]. Half the score is the
// Jaccard overlap of their genre sets, half is rating proximity normalized over
// the 0-10 rating scale. Symmetric: Similarity(a, b) == Similarity(b, a).
func Similarity(a, b *models.Movie) float64 {
	genreScore := jaccard(a.GenreIDs(), b.GenreIDs())

	ratingDiff := math.Abs(a.Rating - b.Rating)
	ratingScore := 1 - ratingDiff/10
	if ratingScore < 0 {
		ratingScore = 0
	}

	return genreScore*0.5 + ratingScore*0.5
}

func jaccard(a, b map[int]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	overlap := 0
	for id := range a {
		if _, ok := b[id]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}
