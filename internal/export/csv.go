package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/download"
)

var (
	movieHeader = []string{"title", "id", "release_date", "overview", "genres", "poster_url", "backdrop_url"}
	localHeader = []string{"local_poster_path", "local_banner_path"}
)

// MovieCSVHeader returns the column names written by WriteMoviesCSV.
func MovieCSVHeader(withLocal bool) []string {
	header := append([]string{}, movieHeader...)
	if withLocal {
		header = append(header, localHeader...)
	}
	return header
}

// WriteMoviesCSV writes one row per movie. withLocal adds the downloaded
// image paths as two trailing columns.
func WriteMoviesCSV(path string, movies []domain.Movie, withLocal bool) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(MovieCSVHeader(withLocal)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, m := range movies {
		row := []string{
			m.Title,
			strconv.FormatInt(m.ID, 10),
			m.ReleaseDate,
			m.Overview,
			m.GenreNames(),
			m.PosterURL,
			m.BackdropURL,
		}
		if withLocal {
			row = append(row, m.LocalPosterPath, m.LocalBannerPath)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write movie %d: %w", m.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if _, err := download.WriteAtomic(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
