package export

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// ReportSource is the read side of the record store used by BuildReport.
type ReportSource interface {
	Counts(ctx context.Context, collections ...string) (map[string]int64, error)
	CountWithPopulation(ctx context.Context) (int64, error)
	TopPlaces(ctx context.Context, limit int) ([]domain.Place, error)
	TheatersByBrand(ctx context.Context) ([]domain.BrandCount, error)
	LastBatchStats(ctx context.Context) (domain.BatchStats, bool, error)
}

// CityPopulation is one row of the top cities table.
type CityPopulation struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Population int64  `json:"population"`
	Processed  bool   `json:"processed"`
	Theaters   int    `json:"theaters_found"`
}

// Report summarizes the stored data set.
type Report struct {
	GeneratedAt          time.Time           `json:"generated_at"`
	Counts               map[string]int64    `json:"counts"`
	CitiesWithPopulation int64               `json:"cities_with_population"`
	TopCities            []CityPopulation    `json:"top_cities"`
	Brands               []domain.BrandCount `json:"theaters_by_brand"`
	LastBatch            *domain.BatchStats  `json:"last_batch,omitempty"`
}

// BuildReport queries src for the counts of collections and the topN most
// populous cities.
func BuildReport(ctx context.Context, src ReportSource, collections []string, topN int) (Report, error) {
	r := Report{GeneratedAt: domain.Now()}

	counts, err := src.Counts(ctx, collections...)
	if err != nil {
		return r, err
	}
	r.Counts = counts

	if r.CitiesWithPopulation, err = src.CountWithPopulation(ctx); err != nil {
		return r, err
	}

	top, err := src.TopPlaces(ctx, topN)
	if err != nil {
		return r, err
	}
	r.TopCities = make([]CityPopulation, 0, len(top))
	for _, p := range top {
		r.TopCities = append(r.TopCities, CityPopulation{
			Name:       p.Name,
			State:      p.State,
			Population: p.PopulationOrZero(),
			Processed:  p.Processed,
			Theaters:   p.TheatersFound,
		})
	}

	if r.Brands, err = src.TheatersByBrand(ctx); err != nil {
		return r, err
	}
	if r.Brands == nil {
		r.Brands = []domain.BrandCount{}
	}

	last, ok, err := src.LastBatchStats(ctx)
	if err != nil {
		return r, err
	}
	if ok {
		r.LastBatch = &last
	}
	return r, nil
}

// Render writes the report as aligned text tables.
func (r Report) Render(w io.Writer, collections []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Report generated %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(tw, "COLLECTION\tDOCUMENTS")
	for _, c := range collections {
		fmt.Fprintf(tw, "%s\t%d\n", c, r.Counts[c])
	}
	fmt.Fprintf(tw, "cities with population\t%d\n", r.CitiesWithPopulation)

	fmt.Fprintln(tw, "\nCITY\tPOPULATION\tPROCESSED\tTHEATERS")
	for _, c := range r.TopCities {
		fmt.Fprintf(tw, "%s, %s\t%d\t%t\t%d\n", c.Name, c.State, c.Population, c.Processed, c.Theaters)
	}

	fmt.Fprintln(tw, "\nBRAND\tTHEATERS")
	for _, b := range r.Brands {
		fmt.Fprintf(tw, "%s\t%d\n", b.Brand, b.Count)
	}

	if b := r.LastBatch; b != nil {
		fmt.Fprintf(tw, "\nLast batch: #%d %s, %d/%d processed, %d theaters, %d errors, %.1fs (run %s)\n",
			b.Batch, b.Status, b.Processed, b.Pending, b.Found, b.Errors, b.DurationSeconds, b.RunID)
	} else {
		fmt.Fprintln(tw, "\nNo batches recorded.")
	}
	return tw.Flush()
}
