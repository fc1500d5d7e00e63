package showtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// 2024-06-03 is a Monday.
var monday = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func keepAll() Settings {
	s := DefaultSettings()
	s.Peak.DensityMultiplier = 1
	s.ScheduleDays = 1
	return s
}

func newGen(t *testing.T, s Settings, seed uint64) *Generator {
	t.Helper()
	g, err := NewGenerator(s, seeded(seed))
	require.NoError(t, err)
	return g
}

func hoursOf(open, closing string) domain.DayHours {
	o, _ := parseClock(open)
	c, _ := parseClock(closing)
	return domain.DayHours{Opening: clockAt(o), Closing: clockAt(c)}
}

func starts(showtimes []domain.Showtime) []string {
	out := make([]string, len(showtimes))
	for i, s := range showtimes {
		out[i] = s.Date + " " + s.Start.H24
	}
	return out
}

var tampa = domain.Theater{
	UniqueID: "amc_Tampa_1",
	Name:     "AMC Tampa 12",
	Address:  domain.Address{Street: "100 Main Street", City: "Tampa", State: "FL", Zip: "33601"},
	Features: []string{"2D", "3D", "IMAX"},
}

func TestNewGenerator_RejectsBadTimes(t *testing.T) {
	s := DefaultSettings()
	s.Weekday.Opening.Min = "8am"
	s.Peak.End = "25:00"

	_, err := NewGenerator(s, seeded(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"8am"`)
	assert.Contains(t, err.Error(), `"25:00"`)
}

func TestHours_PicksConfiguredCandidates(t *testing.T) {
	g := newGen(t, DefaultSettings(), 3)
	for range 20 {
		h := g.Hours("amc_Tampa_1")
		assert.Equal(t, "amc_Tampa_1", h.TheaterID)
		assert.Contains(t, []string{"08:00", "11:00"}, h.Weekday.Opening.H24)
		assert.Contains(t, []string{"22:00", "02:00"}, h.Weekday.Closing.H24)
		assert.Contains(t, []string{"09:00", "11:00"}, h.Weekend.Opening.H24)
		assert.Contains(t, []string{"23:00", "03:00"}, h.Weekend.Closing.H24)
	}
}

func TestClockAt_Formats(t *testing.T) {
	assert.Equal(t, domain.ClockTime{H12: "02:00 PM", H24: "14:00"}, clockAt(14*60))
	assert.Equal(t, domain.ClockTime{H12: "12:00 AM", H24: "00:00"}, clockAt(minutesPerDay))
}

func TestForMovie_SlotsFitBetweenOpeningAndClosing(t *testing.T) {
	g := newGen(t, keepAll(), 1)
	hours := domain.OperationalHours{TheaterID: tampa.UniqueID, Weekday: hoursOf("10:00", "14:00")}
	movie := domain.Movie{ID: 603, Title: "The Matrix", Runtime: 60, ReleaseDate: "2024-05-20"}

	got := g.ForMovie(tampa, hours, movie, 10, monday)

	assert.Equal(t, []string{"2024-06-03 10:00", "2024-06-03 11:10", "2024-06-03 12:20"}, starts(got))
	assert.Equal(t, "01:20 PM", got[2].End.H12)
	for _, s := range got {
		assert.Equal(t, tampa.UniqueID, s.TheaterID)
		assert.Equal(t, int64(603), s.MovieID)
		assert.Equal(t, "The Matrix", s.MovieTitle)
		assert.Equal(t, tampa.Address, s.TheaterAddress)
		assert.Contains(t, tampa.Features, s.ViewType)
	}
}

func TestForMovie_ClosingAfterMidnightRollsOver(t *testing.T) {
	g := newGen(t, keepAll(), 1)
	hours := domain.OperationalHours{Weekday: hoursOf("22:00", "02:00")}
	movie := domain.Movie{ID: 1, Title: "Late Show", Runtime: 120}

	got := g.ForMovie(tampa, hours, movie, 0, monday)

	require.Len(t, got, 2)
	assert.Equal(t, "22:00", got[0].Start.H24)
	assert.Equal(t, "00:00", got[1].Start.H24)
	assert.Equal(t, "02:00", got[1].End.H24)
	assert.Equal(t, "2024-06-03", got[1].Date, "late screenings belong to the operating day")
}

func TestForMovie_WeekendUsesWeekendHours(t *testing.T) {
	s := keepAll()
	s.ScheduleDays = 7
	g := newGen(t, s, 1)
	hours := domain.OperationalHours{
		Weekday: hoursOf("10:00", "12:00"),
		Weekend: hoursOf("09:00", "13:00"),
	}
	movie := domain.Movie{ID: 1, Title: "Matinee", Runtime: 120}

	got := g.ForMovie(tampa, hours, movie, 0, monday)

	want := []string{
		"2024-06-03 10:00", "2024-06-04 10:00", "2024-06-05 10:00", "2024-06-06 10:00", "2024-06-07 10:00",
		"2024-06-08 09:00", "2024-06-08 11:00", "2024-06-09 09:00", "2024-06-09 11:00",
	}
	if diff := cmp.Diff(want, starts(got)); diff != "" {
		t.Errorf("starts mismatch (-want +got):\n%s", diff)
	}
}

func TestForMovie_DefaultRuntime(t *testing.T) {
	g := newGen(t, keepAll(), 1)
	hours := domain.OperationalHours{Weekday: hoursOf("10:00", "14:00")}

	got := g.ForMovie(tampa, hours, domain.Movie{ID: 1, Title: "Unknown Length"}, 0, monday)

	assert.Equal(t, []string{"2024-06-03 10:00", "2024-06-03 12:00"}, starts(got))
}

func TestForMovie_NonPeakSlotsThinned(t *testing.T) {
	s := keepAll()
	s.Peak.DensityMultiplier = 1e9
	g := newGen(t, s, 1)
	hours := domain.OperationalHours{Weekday: hoursOf("10:00", "23:59")}

	got := g.ForMovie(tampa, hours, domain.Movie{ID: 1, Title: "Evening", Runtime: 90}, 0, monday)

	require.NotEmpty(t, got)
	for _, st := range got {
		m, _ := parseClock(st.Start.H24)
		assert.True(t, m >= 17*60 && m <= 22*60, "non-peak slot %s kept", st.Start.H24)
	}
}

func TestForMovie_ViewTypeFallsBackTo2D(t *testing.T) {
	g := newGen(t, keepAll(), 1)
	bare := tampa
	bare.Features = []string{"Dolby"}
	hours := domain.OperationalHours{Weekday: hoursOf("10:00", "14:00")}

	for _, st := range g.ForMovie(bare, hours, domain.Movie{ID: 1, Runtime: 60}, 0, monday) {
		assert.Equal(t, "2D", st.ViewType)
	}
}

func TestForMovie_CutoffWithinThreeWeeksOfRelease(t *testing.T) {
	hours := domain.OperationalHours{Weekday: hoursOf("10:00", "12:00")}
	release := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	for seed := uint64(1); seed <= 30; seed++ {
		g := newGen(t, keepAll(), seed)
		got := g.ForMovie(tampa, hours, domain.Movie{ID: 1, Runtime: 60, ReleaseDate: "2024-05-20"}, 0, monday)
		require.NotEmpty(t, got)
		cutoff, err := time.Parse(time.DateOnly, got[0].CutoffDate)
		require.NoError(t, err)
		days := int(cutoff.Sub(release).Hours() / 24)
		assert.True(t, days >= 1 && days <= 21, "cutoff %d days after release", days)
		for _, st := range got {
			assert.Equal(t, got[0].CutoffDate, st.CutoffDate, "one cutoff per movie")
		}
	}

	g := newGen(t, keepAll(), 1)
	got := g.ForMovie(tampa, hours, domain.Movie{ID: 2, Runtime: 60}, 0, monday)
	assert.Empty(t, got[0].CutoffDate)
}

func TestPickMovies(t *testing.T) {
	movies := []domain.Movie{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}

	s := DefaultSettings()
	s.MinMoviesPerTheater = 2
	s.MaxMoviesPerTheater = 3
	g := newGen(t, s, 8)
	for range 30 {
		got := g.PickMovies(movies)
		assert.True(t, len(got) >= 2 && len(got) <= 3, "picked %d", len(got))
		seen := map[int64]bool{}
		for _, m := range got {
			assert.False(t, seen[m.ID], "movie %d picked twice", m.ID)
			seen[m.ID] = true
		}
	}

	s.MinMoviesPerTheater = 10
	s.MaxMoviesPerTheater = 0
	g = newGen(t, s, 8)
	assert.Len(t, g.PickMovies(movies), 5, "min is capped at the available movies")
	assert.Nil(t, g.PickMovies(nil))
}

func TestBufferMinutes(t *testing.T) {
	g := newGen(t, DefaultSettings(), 4)
	for range 50 {
		b := g.BufferMinutes()
		assert.True(t, b >= 5 && b <= 15, "buffer %d", b)
	}
}

type memStore struct {
	theaters []domain.Theater
	movies   []domain.Movie
	since    time.Time
	hours    []domain.OperationalHours
	cleared  []string
	inserted []domain.Showtime
	failOn   string
}

func (m *memStore) AllTheaters(context.Context) ([]domain.Theater, error) { return m.theaters, nil }

func (m *memStore) RecentMovies(_ context.Context, since time.Time) ([]domain.Movie, error) {
	m.since = since
	return m.movies, nil
}

func (m *memStore) UpsertOperationalHours(_ context.Context, hours []domain.OperationalHours) (int, error) {
	m.hours = append(m.hours, hours...)
	return len(hours), nil
}

func (m *memStore) ClearShowtimes(_ context.Context, ids []string) (int64, error) {
	m.cleared = append(m.cleared, ids...)
	return 4, nil
}

func (m *memStore) InsertShowtimes(_ context.Context, showtimes []domain.Showtime) (int, error) {
	if len(showtimes) > 0 && showtimes[0].TheaterID == m.failOn {
		return 0, errors.New("insert failed")
	}
	m.inserted = append(m.inserted, showtimes...)
	return len(showtimes), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freeze(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(monday))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func TestRun_SchedulesEveryTheater(t *testing.T) {
	freeze(t)
	second := tampa
	second.UniqueID = "regal_Tampa_1"
	store := &memStore{
		theaters: []domain.Theater{tampa, second},
		movies:   []domain.Movie{{ID: 1, Title: "A", Runtime: 100, ReleaseDate: "2024-05-25"}, {ID: 2, Title: "B", Runtime: 95}},
	}
	s := DefaultSettings()
	s.ScheduleDays = 2

	stats, err := Run(context.Background(), newGen(t, s, 1), store, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TheatersProcessed)
	assert.Equal(t, len(store.inserted), stats.ShowtimesGenerated)
	assert.Positive(t, stats.ShowtimesGenerated)
	assert.Equal(t, int64(8), stats.ShowtimesCleared)
	assert.Equal(t, []string{"amc_Tampa_1", "regal_Tampa_1"}, store.cleared)
	require.Len(t, store.hours, 2)
	assert.Equal(t, monday.AddDate(0, 0, -21), store.since)
	assert.Equal(t, monday, stats.Start)
}

func TestRun_NothingToSchedule(t *testing.T) {
	freeze(t)
	g := newGen(t, DefaultSettings(), 1)

	_, err := Run(context.Background(), g, &memStore{}, discardLogger())
	require.ErrorIs(t, err, ErrNoTheaters)

	_, err = Run(context.Background(), g, &memStore{theaters: []domain.Theater{tampa}}, discardLogger())
	require.ErrorIs(t, err, ErrNoMovies)
	assert.Contains(t, err.Error(), "since 2024-05-13")
}

func TestRun_StoreErrorStops(t *testing.T) {
	freeze(t)
	store := &memStore{
		theaters: []domain.Theater{tampa},
		movies:   []domain.Movie{{ID: 1, Title: "A", Runtime: 100}},
		failOn:   tampa.UniqueID,
	}
	s := DefaultSettings()
	s.Peak.DensityMultiplier = 1

	stats, err := Run(context.Background(), newGen(t, s, 1), store, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store showtimes for amc_Tampa_1")
	assert.Zero(t, stats.TheatersProcessed)
}
