// Command genmock writes a small, deterministic census fixture and the
// snapshots the pipeline derives from it. It runs the real gazetteer, census,
// theater and showtime packages against a fixed clock and seed so the output
// matches what the commands would produce.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//
// The census inputs land in <out>/census and can be fed to the cities command
// with -gazetteer and -population.
package main

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/movie-data-etl/internal/census"
	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/export"
	"github.com/couchcryptid/movie-data-etl/internal/gazetteer"
	"github.com/couchcryptid/movie-data-etl/internal/showtime"
	"github.com/couchcryptid/movie-data-etl/internal/theater"
)

var fixedNow = time.Date(2024, time.April, 26, 6, 0, 0, 0, time.UTC)

type mockCity struct {
	geoid, name, state, stateName string
	lat, lon                      float64
	population                    int64 // 0 = no population row
	inGazetteer                   bool
}

var mockCities = []mockCity{
	{"3651000", "New York city", "NY", "New York", 40.6635, -73.9387, 8258035, true},
	{"0644000", "Los Angeles city", "CA", "California", 34.0194, -118.4108, 3820914, true},
	{"1714000", "Chicago city", "IL", "Illinois", 41.8375, -87.6866, 2664452, true},
	{"4835000", "Houston city", "TX", "Texas", 29.7860, -95.3885, 2314157, true},
	{"0455000", "Phoenix city", "AZ", "Arizona", 33.5722, -112.0892, 1650070, true},
	{"4827000", "Fort Worth city", "TX", "Texas", 32.7817, -97.3474, 978468, true},
	{"1767000", "Springfield city", "IL", "Illinois", 39.7710, -89.6539, 112904, true},
	{"2964550", "Springfield city", "MO", "Missouri", 37.1943, -93.2916, 170188, true},
	{"5553000", "Madison city", "WI", "Wisconsin", 43.0826, -89.3931, 280305, true},
	{"0820000", "Denver city", "CO", "Colorado", 39.7621, -104.8759, 716577, true},
	{"3502000", "Albuquerque city", "NM", "New Mexico", 35.1054, -106.6474, 560274, true},
	{"4159000", "Portland city", "OR", "Oregon", 45.5372, -122.6500, 630498, true},
	{"5045250", "Montpelier city", "VT", "Vermont", 44.2659, -72.5717, 0, true},
	{"", "Peoria city", "IL", "Illinois", 0, 0, 110417, false},
}

// Releases older than the default three-week window are skipped by the scheduler.
var mockMovies = []domain.Movie{
	{ID: 929590, Title: "Civil War", ReleaseDate: "2024-04-10", Runtime: 109, VoteAverage: 7.0, VoteCount: 2100, Genres: []int64{10752, 28, 18}},
	{ID: 1001311, Title: "Abigail", ReleaseDate: "2024-04-18", Runtime: 109, VoteAverage: 6.8, VoteCount: 1200, Genres: []int64{27, 53}},
	{ID: 937287, Title: "Challengers", ReleaseDate: "2024-04-18", Runtime: 131, VoteAverage: 7.0, VoteCount: 1500, Genres: []int64{10749, 18}},
	{ID: 823464, Title: "Godzilla x Kong: The New Empire", ReleaseDate: "2024-03-27", Runtime: 115, VoteAverage: 7.2, VoteCount: 2100, Genres: []int64{28, 878}},
	{ID: 693134, Title: "Dune: Part Two", ReleaseDate: "2024-02-27", Runtime: 167, VoteAverage: 8.2, VoteCount: 5300, Genres: []int64{878, 12}},
}

func main() {
	if err := run(); err != nil {
		slog.Error("genmock failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory for fixtures and snapshots")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	censusDir := filepath.Join(*out, "census")
	if err := os.MkdirAll(censusDir, 0o755); err != nil {
		return err
	}
	gazPath := filepath.Join(censusDir, "2024_Gaz_place_national.zip")
	popPath := filepath.Join(censusDir, "sub-est2023.csv")
	if err := writeGazetteerZip(gazPath); err != nil {
		return fmt.Errorf("write gazetteer: %w", err)
	}
	if err := writePopulationCSV(popPath); err != nil {
		return fmt.Errorf("write population: %w", err)
	}
	slog.Info("wrote census fixtures", "gazetteer", gazPath, "population", popPath)

	places, _, err := gazetteer.LoadArchive(gazPath, logger)
	if err != nil {
		return err
	}
	f, err := os.Open(popPath)
	if err != nil {
		return err
	}
	merge, err := census.Merge(places, f, census.DefaultPopulationColumn, logger)
	f.Close()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	gen := theater.NewGenerator(theater.DefaultRules(), rng, logger)
	var theaters []domain.Theater
	for _, p := range places.Places() {
		theaters = append(theaters, gen.Generate(*p)...)
	}

	sched, err := showtime.NewGenerator(showtime.DefaultSettings(), rng)
	if err != nil {
		return err
	}
	mem := &memSchedule{theaters: theaters, movies: mockMovies}
	stats, err := showtime.Run(context.Background(), sched, mem, logger)
	if err != nil {
		return err
	}

	writes := []struct {
		file string
		v    any
	}{
		{export.CitiesFile, places.Places()},
		{export.TheatersFile, theaters},
		{export.MoviesFile, mockMovies},
		{"operational_hours.json", mem.hours},
		{"showtimes.json", mem.showtimes},
	}
	for _, w := range writes {
		if err := export.WriteJSON(filepath.Join(*out, w.file), w.v, true); err != nil {
			return err
		}
	}
	if err := export.WriteMoviesCSV(filepath.Join(*out, export.MoviesCSVFile), mockMovies, false); err != nil {
		return err
	}

	printStats(places, merge, theaters, stats)
	return nil
}

func writeGazetteerZip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("2024_Gaz_place_national.txt")
	if err != nil {
		f.Close()
		return err
	}
	if err := writeGazetteerRows(w); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeGazetteerRows(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "USPS\tGEOID\tANSICODE\tNAME\tLSAD\tFUNCSTAT\tALAND\tAWATER\tALAND_SQMI\tAWATER_SQMI\tINTPTLAT\tINTPTLONG"); err != nil {
		return err
	}
	for i, c := range mockCities {
		if !c.inGazetteer {
			continue
		}
		land := 20.0 + float64(i)*11.5
		_, err := fmt.Fprintf(w, "%s\t%s\t%08d\t%s\t25\tA\t%d\t%d\t%.3f\t%.3f\t%.6f\t%.6f\n",
			c.state, c.geoid, 2390000+i, c.name,
			int64(land*2589988), int64(land*0.04*2589988), land, land*0.04,
			c.lat, c.lon)
		if err != nil {
			return err
		}
	}
	return nil
}

func writePopulationCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	rows := [][]string{{"SUMLEV", "STATE", "COUNTY", "PLACE", "NAME", "STNAME", "ESTIMATESBASE2020", census.DefaultPopulationColumn}}
	// State total rows are filtered by summary level.
	rows = append(rows, []string{"040", "17", "000", "00000", "Illinois", "Illinois", "12812508", "12549689"})
	for _, c := range mockCities {
		if c.population == 0 {
			continue
		}
		place := "99999"
		if len(c.geoid) == 7 {
			place = c.geoid[2:]
		}
		rows = append(rows, []string{
			"162", "00", "000", place, c.name, c.stateName,
			strconv.FormatInt(c.population+1000, 10), strconv.FormatInt(c.population, 10),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// memSchedule is an in-memory showtime.Store.
type memSchedule struct {
	theaters  []domain.Theater
	movies    []domain.Movie
	hours     []domain.OperationalHours
	showtimes []domain.Showtime
}

func (m *memSchedule) AllTheaters(context.Context) ([]domain.Theater, error) {
	return m.theaters, nil
}

func (m *memSchedule) RecentMovies(_ context.Context, since time.Time) ([]domain.Movie, error) {
	var out []domain.Movie
	for _, mv := range m.movies {
		if t, ok := mv.ReleaseTime(); ok && !t.Before(since) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memSchedule) UpsertOperationalHours(_ context.Context, hours []domain.OperationalHours) (int, error) {
	m.hours = append(m.hours, hours...)
	return len(hours), nil
}

func (m *memSchedule) ClearShowtimes(context.Context, []string) (int64, error) {
	return 0, nil
}

func (m *memSchedule) InsertShowtimes(_ context.Context, showtimes []domain.Showtime) (int, error) {
	m.showtimes = append(m.showtimes, showtimes...)
	return len(showtimes), nil
}

func printStats(places *domain.PlaceSet, merge census.MergeResult, theaters []domain.Theater, stats showtime.Stats) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Places: %d (with population %d)\n", places.Len(), places.WithPopulation())
	fmt.Printf("Population: attached=%d synthesized=%d suppressed=%d unmatched=%d\n",
		merge.Attached, merge.Synthesized, merge.Suppressed, merge.Unmatched)
	for _, mc := range merge.MajorCities {
		fmt.Printf("  %s, %s: found=%t population=%d backfilled=%t\n", mc.Name, mc.State, mc.Found, mc.Population, mc.BackFilled)
	}

	brands := map[string]int{}
	for _, t := range theaters {
		brands[t.Brand]++
	}
	names := make([]string, 0, len(brands))
	for b := range brands {
		names = append(names, b)
	}
	slices.Sort(names)
	fmt.Printf("Theaters: %d\n", len(theaters))
	for _, b := range names {
		fmt.Printf("  %s=%d\n", b, brands[b])
	}

	fmt.Printf("Showtimes: %d across %d theaters (%d movie assignments)\n",
		stats.ShowtimesGenerated, stats.TheatersProcessed, stats.MoviesScheduled)
}
