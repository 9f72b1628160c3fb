package models

import "time"

// Genre is one entry of a movie's genre set, as delivered by the upstream
// catalog and stored as JSONB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie is a catalog entity. The ID is the upstream catalog identifier;
// ingestion upserts by it, so a movie is never duplicated.
type Movie struct {
	ID           int64      `db:"id"            json:"id"`
	Title        string     `db:"title"         json:"title"`
	Overview     *string    `db:"overview"      json:"overview,omitempty"`
	ReleaseDate  *time.Time `db:"release_date"  json:"release_date,omitempty"`
	Genres       []Genre    `db:"genres"        json:"genres"`
	Rating       float64    `db:"rating"        json:"rating"`
	VoteCount    int        `db:"vote_count"    json:"vote_count"`
	Popularity   float64    `db:"popularity"    json:"popularity"`
	PosterPath   *string    `db:"poster_path"   json:"poster_path,omitempty"`
	BackdropPath *string    `db:"backdrop_path" json:"backdrop_path,omitempty"`
	Runtime      *int       `db:"runtime"       json:"runtime,omitempty"`
	Budget       *int64     `db:"budget"        json:"budget,omitempty"`
	Revenue      *int64     `db:"revenue"       json:"revenue,omitempty"`
	Tagline      *string    `db:"tagline"       json:"tagline,omitempty"`
	Status       *string    `db:"status"        json:"status,omitempty"`
	IsTrending   bool       `db:"is_trending"   json:"is_trending"`
	IsUnderrated bool       `db:"is_underrated" json:"is_underrated"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// GenreIDs returns the set of genre IDs for similarity computation.
func (m *Movie) GenreIDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(m.Genres))
	for _, g := range m.Genres {
		ids[g.ID] = struct{}{}
	}
	return ids
}

// ReleaseYear returns the release year, or 0 if the release date is unknown.
func (m *Movie) ReleaseYear() int {
	if m.ReleaseDate == nil {
		return 0
	}
	return m.ReleaseDate.Year()
}
