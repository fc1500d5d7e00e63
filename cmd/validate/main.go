// Command validate performs integrity checks across the exported snapshots:
// cities, theaters, movies (JSON and CSV) and, when present, showtimes. It
// verifies key uniqueness, coordinates, cross references between snapshots
// and the CSV layout.
//
// Usage:
//
//	go run ./cmd/validate -dir data
//	go run ./cmd/validate -dir data/mock
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/geo/s2"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/export"
)

const (
	earthRadiusKm = 6371.01
	showtimesFile = "showtimes.json"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "data", "directory containing the exported snapshots")
	jitterKm := flag.Float64("jitter-km", 15, "maximum distance between a theater and its city centroid")
	flag.Parse()

	if code := run(*dir, *jitterKm); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, jitterKm float64) int {
	fmt.Println("=== Movie Data Snapshot Validation ===")
	fmt.Println()

	cities, err := loadJSON[domain.Place](filepath.Join(dir, export.CitiesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cities: %v\n", err)
		return 1
	}
	theaters, err := loadJSON[domain.Theater](filepath.Join(dir, export.TheatersFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load theaters: %v\n", err)
		return 1
	}
	movies, err := loadJSON[domain.Movie](filepath.Join(dir, export.MoviesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load movies: %v\n", err)
		return 1
	}
	movieRows, err := loadCSV(filepath.Join(dir, export.MoviesCSVFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load movies csv: %v\n", err)
		return 1
	}
	showtimes, err := loadJSON[domain.Showtime](filepath.Join(dir, showtimesFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "FATAL: load showtimes: %v\n", err)
		return 1
	}

	byKey := indexPlaces(cities)
	phases := []*phase{
		validateCities(cities),
		validateTheaters(theaters, byKey, jitterKm),
		validateMovies(movies, movieRows),
	}
	if showtimes != nil {
		phases = append(phases, validateShowtimes(showtimes, theaters, movies))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d cities, %d theaters, %d movies JSON, %d movies CSV, %d showtimes\n",
		len(cities), len(theaters), len(movies), max(len(movieRows)-1, 0), len(showtimes))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

func indexPlaces(cities []domain.Place) map[string]*domain.Place {
	out := make(map[string]*domain.Place, len(cities))
	for i := range cities {
		out[cities[i].Key] = &cities[i]
	}
	return out
}

// ── Cities ──

func validateCities(cities []domain.Place) *phase {
	p := &phase{name: "Cities: keys, coordinates, population"}
	fmt.Println("Phase 1: Cities")

	seen := make(map[string]bool, len(cities))
	withPop := 0
	for i := range cities {
		c := &cities[i]
		if c.Key == "" {
			p.errorf("city %d (%s): empty key", i, c.DisplayName())
			continue
		}
		if seen[c.Key] {
			p.errorf("duplicate city key %q", c.Key)
		}
		seen[c.Key] = true

		if want := domain.StorageKey(c.GEOID, c.Name, c.State); c.Key != want {
			p.errorf("city %q: key does not match storage key %q", c.Key, want)
		}
		if domain.StateName(c.State) == c.State {
			p.errorf("city %q: unknown state %q", c.Key, c.State)
		}
		if lat, lon, ok := c.Coordinates(); ok && !s2.LatLngFromDegrees(lat, lon).IsValid() {
			p.errorf("city %q: invalid coordinates %g,%g", c.Key, lat, lon)
		}
		if c.HasPopulation() {
			withPop++
			if c.PopulationOrZero() < 0 {
				p.errorf("city %q: negative population %d", c.Key, c.PopulationOrZero())
			}
		}
		if c.Processed && c.ProcessedAt == nil {
			p.errorf("city %q: processed without a timestamp", c.Key)
		}
	}
	fmt.Printf("  %d cities, %d with population\n", len(cities), withPop)
	return p
}

// ── Theaters ──

func validateTheaters(theaters []domain.Theater, cities map[string]*domain.Place, jitterKm float64) *phase {
	p := &phase{name: "Theaters: ids, city references, features"}
	fmt.Println("Phase 2: Theaters")

	seen := make(map[string]bool, len(theaters))
	for i := range theaters {
		t := &theaters[i]
		if seen[t.UniqueID] {
			p.errorf("duplicate theater id %q", t.UniqueID)
		}
		seen[t.UniqueID] = true

		if t.Brand == "" || t.Name == "" {
			p.errorf("theater %q: missing brand or name", t.UniqueID)
		}
		if !t.HasFeature(domain.Feature2D) || !t.HasFeature(domain.Feature3D) {
			p.errorf("theater %q: features %v lack 2D or 3D", t.UniqueID, t.Features)
		}
		ll := s2.LatLngFromDegrees(t.Location.Lat(), t.Location.Lon())
		if !ll.IsValid() {
			p.errorf("theater %q: invalid location %g,%g", t.UniqueID, t.Location.Lat(), t.Location.Lon())
			continue
		}

		city, ok := cities[t.CityKey]
		if !ok {
			p.errorf("theater %q: city %q not in cities snapshot", t.UniqueID, t.CityKey)
			continue
		}
		if lat, lon, ok := city.Coordinates(); ok {
			km := ll.Distance(s2.LatLngFromDegrees(lat, lon)).Radians() * earthRadiusKm
			// Small slack for float rounding in the exported coordinates.
			if km > jitterKm+0.1 {
				p.errorf("theater %q: %.1f km from %s", t.UniqueID, km, city.DisplayName())
			}
		}
	}
	fmt.Printf("  %d theaters across %d ids\n", len(theaters), len(seen))
	return p
}

// ── Movies ──

func validateMovies(movies []domain.Movie, rows [][]string) *phase {
	p := &phase{name: "Movies: JSON/CSV parity"}
	fmt.Println("Phase 3: Movies")

	ids := make(map[int64]bool, len(movies))
	for _, m := range movies {
		if ids[m.ID] {
			p.errorf("duplicate movie id %d", m.ID)
		}
		ids[m.ID] = true
		if m.Title == "" {
			p.errorf("movie %d: empty title", m.ID)
		}
		if m.ReleaseDate != "" {
			if _, ok := m.ReleaseTime(); !ok {
				p.errorf("movie %d: malformed release date %q", m.ID, m.ReleaseDate)
			}
		}
	}

	if len(rows) == 0 {
		p.errorf("movies csv: missing header")
		return p
	}
	header := rows[0]
	if !slices.Equal(header, export.MovieCSVHeader(false)) && !slices.Equal(header, export.MovieCSVHeader(true)) {
		p.errorf("movies csv: unexpected header %v", header)
	}
	if got := len(rows) - 1; got != len(movies) {
		p.errorf("movies csv: %d rows, JSON has %d movies", got, len(movies))
	}
	for i, row := range rows[1:] {
		if len(row) < 2 {
			p.errorf("movies csv line %d: short row", i+2)
			continue
		}
		id, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil || !ids[id] {
			p.errorf("movies csv line %d: id %q not in JSON", i+2, row[1])
		}
	}
	fmt.Printf("  %d movies\n", len(movies))
	return p
}

// ── Showtimes ──

func validateShowtimes(showtimes []domain.Showtime, theaters []domain.Theater, movies []domain.Movie) *phase {
	p := &phase{name: "Showtimes: references, dates"}
	fmt.Println("Phase 4: Showtimes")

	theaterIDs := make(map[string]bool, len(theaters))
	for _, t := range theaters {
		theaterIDs[t.UniqueID] = true
	}
	movieIDs := make(map[int64]bool, len(movies))
	for _, m := range movies {
		movieIDs[m.ID] = true
	}

	for i, s := range showtimes {
		if !theaterIDs[s.TheaterID] {
			p.errorf("showtime %d: unknown theater %q", i, s.TheaterID)
		}
		if !movieIDs[s.MovieID] {
			p.errorf("showtime %d: unknown movie %d", i, s.MovieID)
		}
		date, err := time.Parse(time.DateOnly, s.Date)
		if err != nil {
			p.errorf("showtime %d: malformed date %q", i, s.Date)
			continue
		}
		if s.CutoffDate != "" {
			if _, err := time.Parse(time.DateOnly, s.CutoffDate); err != nil {
				p.errorf("showtime %d: malformed cutoff date %q", i, s.CutoffDate)
			}
		}
		if date.Before(s.CreatedAt.Truncate(24 * time.Hour)) {
			p.errorf("showtime %d: dated %s, before it was generated", i, s.Date)
		}
		if s.Start.H24 == "" || s.End.H24 == "" {
			p.errorf("showtime %d: missing start or end time", i)
		}
	}
	fmt.Printf("  %d showtimes\n", len(showtimes))
	return p
}
