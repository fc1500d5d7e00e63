// Package export writes JSON and CSV snapshots of the stored collections and
// renders the run report.
package export

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/movie-data-etl/internal/download"
)

// Snapshot file names under the output directory.
const (
	CitiesFile    = "us_cities.json"
	TheatersFile  = "theaters.json"
	MoviesFile    = "movies.json"
	MoviesCSVFile = "movies.csv"
	ReportFile    = "report.json"
)

// WriteJSON encodes v to path, indented when pretty is set. The file is
// replaced atomically. Nil slices should be passed as empty slices to get [].
func WriteJSON(path string, v any, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if _, err := download.WriteAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
