package domain

import "context"

// DiscoverQuery filters a catalog listing.
type DiscoverQuery struct {
	SortBy           string
	MinVoteCount     int
	MinVoteAverage   float64
	ReleaseYearStart int
	ReleaseYearEnd   int
	GenresInclude    []int64
	GenresExclude    []int64
	Language         string
}

// Catalog is the upstream movie metadata source.
type Catalog interface {
	// Discover returns one page (1-based) of movies matching q.
	Discover(ctx context.Context, q DiscoverQuery, page int) (DiscoverPage, error)

	// MovieDetails returns the full record for one movie id.
	MovieDetails(ctx context.Context, id int64) (MovieDetail, error)
}
