package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	maxCast            = 10
	maxRecommendations = 5
)

// MovieSummary is one entry of a catalog listing page.
type MovieSummary struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	ReleaseDate  string  `json:"release_date"`
	Overview     string  `json:"overview"`
	GenreIDs     []int64 `json:"genre_ids"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

// DiscoverPage is one page of a catalog listing.
type DiscoverPage struct {
	Page         int            `json:"page"`
	Results      []MovieSummary `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// MovieDetail is the catalog's per-id payload including the appended
// credits, videos, keywords and recommendations sub-resources.
type MovieDetail struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	Tagline          string  `json:"tagline"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	Status           string  `json:"status"`
	Genres           []Genre `json:"genres"`
	Budget           int64   `json:"budget"`
	Revenue          int64   `json:"revenue"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	IMDbID           string  `json:"imdb_id"`
	Homepage         string  `json:"homepage"`
	OriginalLanguage string  `json:"original_language"`

	Credits struct {
		Cast []CastMember `json:"cast"`
		Crew []CrewMember `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []Video `json:"results"`
	} `json:"videos"`
	Keywords struct {
		Keywords []Keyword `json:"keywords"`
	} `json:"keywords"`
	Recommendations struct {
		Results []MovieSummary `json:"results"`
	} `json:"recommendations"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int64  `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// Keyword is a catalog keyword tag.
type Keyword struct {
	ID   int64  `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// Video is a trailer or clip reference.
type Video struct {
	Key  string `json:"key" bson:"key"`
	Name string `json:"name" bson:"name"`
	Site string `json:"site" bson:"site"`
	Type string `json:"type" bson:"type"`
}

// CastMember is a credited actor.
type CastMember struct {
	ID          int64  `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Character   string `json:"character" bson:"character"`
	ProfilePath string `json:"profile_path" bson:"profile_path"`
	Order       int    `json:"order" bson:"order"`
}

// CrewMember is a credited crew member.
type CrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	ProfilePath string `json:"profile_path"`
}

// Recommendation is a related title.
type Recommendation struct {
	ID    int64  `json:"id" bson:"id"`
	Title string `json:"title" bson:"title"`
}

// Person is an actor or director stored in its own collection.
type Person struct {
	ID          int64     `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Character   string    `json:"character,omitempty" bson:"character,omitempty"`
	ProfilePath string    `json:"profile_path,omitempty" bson:"profile_path,omitempty"`
	Order       *int      `json:"order,omitempty" bson:"order,omitempty"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// GenreRecord is a genre stored in its own collection.
type GenreRecord struct {
	ID          int64     `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// Movie is the normalized catalog record persisted to the movies collection.
type Movie struct {
	ID               int64            `json:"id" bson:"id"`
	Title            string           `json:"title" bson:"title"`
	OriginalTitle    string           `json:"original_title,omitempty" bson:"original_title,omitempty"`
	Overview         string           `json:"overview,omitempty" bson:"overview,omitempty"`
	Tagline          string           `json:"tagline,omitempty" bson:"tagline,omitempty"`
	ReleaseDate      string           `json:"release_date,omitempty" bson:"release_date,omitempty"`
	Runtime          int              `json:"runtime,omitempty" bson:"runtime,omitempty"`
	VoteAverage      float64          `json:"vote_average" bson:"vote_average"`
	VoteCount        int              `json:"vote_count" bson:"vote_count"`
	Popularity       float64          `json:"popularity" bson:"popularity"`
	Status           string           `json:"status,omitempty" bson:"status,omitempty"`
	Genres           []int64          `json:"genres" bson:"genres"`
	GenresOriginal   []Genre          `json:"genres_original" bson:"genres_original"`
	Budget           int64            `json:"budget,omitempty" bson:"budget,omitempty"`
	Revenue          int64            `json:"revenue,omitempty" bson:"revenue,omitempty"`
	PosterPath       string           `json:"poster_path,omitempty" bson:"poster_path,omitempty"`
	BackdropPath     string           `json:"backdrop_path,omitempty" bson:"backdrop_path,omitempty"`
	PosterURL        string           `json:"poster_url,omitempty" bson:"poster_url,omitempty"`
	BackdropURL      string           `json:"backdrop_url,omitempty" bson:"backdrop_url,omitempty"`
	LocalPosterPath  string           `json:"local_poster_path,omitempty" bson:"local_poster_path,omitempty"`
	LocalBannerPath  string           `json:"local_banner_path,omitempty" bson:"local_banner_path,omitempty"`
	IMDbID           string           `json:"imdb_id,omitempty" bson:"imdb_id,omitempty"`
	Homepage         string           `json:"homepage,omitempty" bson:"homepage,omitempty"`
	OriginalLanguage string           `json:"original_language,omitempty" bson:"original_language,omitempty"`
	Videos           []Video          `json:"videos" bson:"videos"`
	Recommendations  []Recommendation `json:"recommendations" bson:"recommendations"`
	Keywords         []Keyword        `json:"keywords" bson:"keywords"`
	Cast             []CastMember     `json:"cast" bson:"cast"`
	Directors        []Person         `json:"directors" bson:"directors"`
	LastUpdated      time.Time        `json:"last_updated" bson:"last_updated"`
}

// ImagePaths are the local files written for one movie. Empty means not downloaded.
type ImagePaths struct {
	Poster   string
	Backdrop string
}

// Any reports whether at least one image was saved.
func (p ImagePaths) Any() bool { return p.Poster != "" || p.Backdrop != "" }

// NormalizeMovie flattens a catalog detail payload into a Movie. Image URLs
// are built from imageBaseURL only when the corresponding path is set.
func NormalizeMovie(d MovieDetail, imageBaseURL string) Movie {
	now := Now()
	m := Movie{
		ID:               d.ID,
		Title:            d.Title,
		OriginalTitle:    d.OriginalTitle,
		Overview:         d.Overview,
		Tagline:          d.Tagline,
		ReleaseDate:      d.ReleaseDate,
		Runtime:          d.Runtime,
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
		Popularity:       d.Popularity,
		Status:           d.Status,
		Genres:           make([]int64, 0, len(d.Genres)),
		GenresOriginal:   append([]Genre(nil), d.Genres...),
		Budget:           d.Budget,
		Revenue:          d.Revenue,
		PosterPath:       d.PosterPath,
		BackdropPath:     d.BackdropPath,
		PosterURL:        imageURL(imageBaseURL, d.PosterPath),
		BackdropURL:      imageURL(imageBaseURL, d.BackdropPath),
		IMDbID:           d.IMDbID,
		Homepage:         d.Homepage,
		OriginalLanguage: d.OriginalLanguage,
		Videos:           []Video{},
		Recommendations:  []Recommendation{},
		Keywords:         append([]Keyword{}, d.Keywords.Keywords...),
		Cast:             []CastMember{},
		Directors:        []Person{},
		LastUpdated:      now,
	}

	for _, g := range d.Genres {
		m.Genres = append(m.Genres, g.ID)
	}

	for _, v := range d.Videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			m.Videos = append(m.Videos, v)
		}
	}

	for i, r := range d.Recommendations.Results {
		if i >= maxRecommendations {
			break
		}
		m.Recommendations = append(m.Recommendations, Recommendation{ID: r.ID, Title: r.Title})
	}

	for i, c := range d.Credits.Cast {
		if i >= maxCast {
			break
		}
		m.Cast = append(m.Cast, c)
	}

	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			m.Directors = append(m.Directors, Person{
				ID:          c.ID,
				Name:        c.Name,
				ProfilePath: c.ProfilePath,
				LastUpdated: now,
			})
		}
	}

	return m
}

// Actors returns the movie's cast as person records.
func (m Movie) Actors() []Person {
	out := make([]Person, 0, len(m.Cast))
	for _, c := range m.Cast {
		order := c.Order
		out = append(out, Person{
			ID:          c.ID,
			Name:        c.Name,
			Character:   c.Character,
			ProfilePath: c.ProfilePath,
			Order:       &order,
			LastUpdated: m.LastUpdated,
		})
	}
	return out
}

// GenreRecords returns one record per genre id, named from GenresOriginal
// or "Unknown" when the name is missing.
func (m Movie) GenreRecords() []GenreRecord {
	names := make(map[int64]string, len(m.GenresOriginal))
	for _, g := range m.GenresOriginal {
		names[g.ID] = g.Name
	}
	out := make([]GenreRecord, 0, len(m.Genres))
	for _, id := range m.Genres {
		name, ok := names[id]
		if !ok || name == "" {
			name = "Unknown"
		}
		out = append(out, GenreRecord{ID: id, Name: name, LastUpdated: m.LastUpdated})
	}
	return out
}

// GenreNames returns the genre names joined by "|".
func (m Movie) GenreNames() string {
	names := make([]string, 0, len(m.GenresOriginal))
	for _, g := range m.GenresOriginal {
		names = append(names, g.Name)
	}
	return strings.Join(names, "|")
}

// ReleaseTime parses ReleaseDate (YYYY-MM-DD). ok is false for empty or
// malformed dates.
func (m Movie) ReleaseTime() (t time.Time, ok bool) {
	if m.ReleaseDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, m.ReleaseDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IDString returns the id in decimal form.
func (m Movie) IDString() string {
	return strconv.FormatInt(m.ID, 10)
}

func imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
