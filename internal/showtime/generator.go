package showtime

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

const minutesPerDay = 24 * 60

var viewTypes = []string{domain.Feature2D, domain.Feature3D, domain.FeatureIMAX, domain.Feature4DX}

// Generator synthesizes operational hours and showtimes. It shares one
// random source and is not safe for concurrent use.
type Generator struct {
	settings  Settings
	peakStart int
	peakEnd   int
	rng       *rand.Rand
}

// NewGenerator checks the time-of-day settings and creates a Generator.
// A nil rng is seeded from the runtime.
func NewGenerator(settings Settings, rng *rand.Rand) (*Generator, error) {
	var errs []error
	for _, s := range []string{
		settings.Weekday.Opening.Min, settings.Weekday.Opening.Max,
		settings.Weekday.Closing.Min, settings.Weekday.Closing.Max,
		settings.Weekend.Opening.Min, settings.Weekend.Opening.Max,
		settings.Weekend.Closing.Min, settings.Weekend.Closing.Max,
	} {
		if _, err := parseClock(s); err != nil {
			errs = append(errs, err)
		}
	}
	peakStart, err := parseClock(settings.Peak.Start)
	errs = append(errs, err)
	peakEnd, err := parseClock(settings.Peak.End)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("showtime settings: %w", err)
	}

	if settings.Peak.DensityMultiplier < 1 {
		settings.Peak.DensityMultiplier = 1
	}
	if settings.DefaultRuntime <= 0 {
		settings.DefaultRuntime = 120
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		settings:  settings,
		peakStart: peakStart,
		peakEnd:   peakEnd,
		rng:       rng,
	}, nil
}

// Hours picks a theater's weekday and weekend opening and closing times.
func (g *Generator) Hours(theaterID string) domain.OperationalHours {
	return domain.OperationalHours{
		TheaterID:   theaterID,
		Weekday:     g.dayHours(g.settings.Weekday),
		Weekend:     g.dayHours(g.settings.Weekend),
		LastUpdated: domain.Now(),
	}
}

func (g *Generator) dayHours(r DayRanges) domain.DayHours {
	return domain.DayHours{
		Opening: clockAt(g.choose(r.Opening)),
		Closing: clockAt(g.choose(r.Closing)),
	}
}

func (g *Generator) choose(r TimeRange) int {
	s := r.Min
	if g.rng.IntN(2) == 1 {
		s = r.Max
	}
	m, _ := parseClock(s) // validated in NewGenerator
	return m
}

// PickMovies chooses the movies a theater shows, without repeats.
func (g *Generator) PickMovies(movies []domain.Movie) []domain.Movie {
	if len(movies) == 0 {
		return nil
	}
	lo := min(g.settings.MinMoviesPerTheater, len(movies))
	hi := len(movies)
	if g.settings.MaxMoviesPerTheater > 0 {
		hi = min(g.settings.MaxMoviesPerTheater, len(movies))
	}
	n := lo
	if hi > lo {
		n = lo + g.rng.IntN(hi-lo+1)
	}
	out := make([]domain.Movie, 0, n)
	for _, i := range g.rng.Perm(len(movies))[:n] {
		out = append(out, movies[i])
	}
	return out
}

// BufferMinutes picks the turnaround between screenings for one theater.
func (g *Generator) BufferMinutes() int {
	b := g.settings.Buffer
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + g.rng.IntN(b.Max-b.Min+1)
}

// ForMovie lays out a movie's screenings at a theater for ScheduleDays days
// starting on from's date. A closing time at or before opening belongs to the
// next calendar day.
func (g *Generator) ForMovie(theater domain.Theater, hours domain.OperationalHours, movie domain.Movie, buffer int, from time.Time) []domain.Showtime {
	runtime := movie.Runtime
	if runtime <= 0 {
		runtime = g.settings.DefaultRuntime
	}
	cutoff := g.cutoffDate(movie)
	now := domain.Now()
	day0 := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	var out []domain.Showtime
	for d := 0; d < g.settings.ScheduleDays; d++ {
		date := day0.AddDate(0, 0, d)
		dh := hours.Weekday
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			dh = hours.Weekend
		}
		open, _ := parseClock(dh.Opening.H24)
		closing, _ := parseClock(dh.Closing.H24)
		if closing <= open {
			closing += minutesPerDay
		}

		for t := open; t+runtime <= closing; {
			if !g.isPeak(t) && g.rng.Float64() > 1/g.settings.Peak.DensityMultiplier {
				t += max(buffer, 1)
				continue
			}
			start := date.Add(time.Duration(t) * time.Minute)
			out = append(out, domain.Showtime{
				TheaterID:      theater.UniqueID,
				MovieID:        movie.ID,
				MovieTitle:     movie.Title,
				TheaterName:    theater.Name,
				TheaterAddress: theater.Address,
				ViewType:       g.viewType(theater),
				Date:           date.Format(time.DateOnly),
				Start:          domain.NewClockTime(start),
				End:            domain.NewClockTime(start.Add(time.Duration(runtime) * time.Minute)),
				CutoffDate:     cutoff,
				CreatedAt:      now,
			})
			t += runtime + buffer
		}
	}
	return out
}

func (g *Generator) isPeak(minute int) bool {
	m := minute % minutesPerDay
	return g.peakStart <= m && m <= g.peakEnd
}

func (g *Generator) viewType(theater domain.Theater) string {
	var available []string
	for _, f := range theater.Features {
		for _, v := range viewTypes {
			if f == v {
				available = append(available, f)
			}
		}
	}
	if len(available) == 0 {
		return domain.Feature2D
	}
	return available[g.rng.IntN(len(available))]
}

// cutoffDate is the last day a movie stays scheduled: a random 1..CutoffMaxDays
// days after release. Movies without a release date get no cutoff.
func (g *Generator) cutoffDate(movie domain.Movie) string {
	release, ok := movie.ReleaseTime()
	if !ok {
		return ""
	}
	maxDays := max(g.settings.CutoffMaxDays, 1)
	return release.AddDate(0, 0, 1+g.rng.IntN(maxDays)).Format(time.DateOnly)
}

func clockAt(minute int) domain.ClockTime {
	return domain.NewClockTime(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute))
}
