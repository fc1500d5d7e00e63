package showtime

import (
	"fmt"
	"time"
)

// TimeRange holds the two candidate times of day ("HH:MM") for an opening or
// closing. A generated hour is one of the two.
type TimeRange struct {
	Min string `koanf:"min" json:"min" validate:"required,datetime=15:04"`
	Max string `koanf:"max" json:"max" validate:"required,datetime=15:04"`
}

// DayRanges are the opening and closing candidates of one kind of day.
type DayRanges struct {
	Opening TimeRange `koanf:"opening" json:"opening"`
	Closing TimeRange `koanf:"closing" json:"closing"`
}

// MinuteRange is an inclusive interval of minutes.
type MinuteRange struct {
	Min int `koanf:"min" json:"min" validate:"gte=0"`
	Max int `koanf:"max" json:"max" validate:"gtefield=Min"`
}

// PeakHours marks the busy evening window. Slots outside it are kept with
// probability 1/DensityMultiplier.
type PeakHours struct {
	Start             string  `koanf:"start" json:"start" validate:"required,datetime=15:04"`
	End               string  `koanf:"end" json:"end" validate:"required,datetime=15:04"`
	DensityMultiplier float64 `koanf:"density_multiplier" json:"density_multiplier" validate:"gte=1"`
}

// Settings drive showtime synthesis.
type Settings struct {
	Weekday             DayRanges   `koanf:"weekday" json:"weekday"`
	Weekend             DayRanges   `koanf:"weekend" json:"weekend"`
	Buffer              MinuteRange `koanf:"buffer_minutes" json:"buffer_minutes"`
	ReleaseWindowWeeks  int         `koanf:"release_window_weeks" json:"release_window_weeks" validate:"gte=1"`
	MinMoviesPerTheater int         `koanf:"min_movies_per_theater" json:"min_movies_per_theater" validate:"gte=0"`
	MaxMoviesPerTheater int         `koanf:"max_movies_per_theater" json:"max_movies_per_theater" validate:"gte=0"` // 0 = every available movie
	Peak                PeakHours   `koanf:"peak_hours" json:"peak_hours"`
	ScheduleDays        int         `koanf:"schedule_days" json:"schedule_days" validate:"gte=1"`
	CutoffMaxDays       int         `koanf:"cutoff_max_days" json:"cutoff_max_days" validate:"gte=1"`
	DefaultRuntime      int         `koanf:"default_runtime_minutes" json:"default_runtime_minutes" validate:"gte=1"`
}

// DefaultSettings returns the built-in showtime settings.
func DefaultSettings() Settings {
	return Settings{
		Weekday: DayRanges{
			Opening: TimeRange{Min: "08:00", Max: "11:00"},
			Closing: TimeRange{Min: "22:00", Max: "02:00"},
		},
		Weekend: DayRanges{
			Opening: TimeRange{Min: "09:00", Max: "11:00"},
			Closing: TimeRange{Min: "23:00", Max: "03:00"},
		},
		Buffer:              MinuteRange{Min: 5, Max: 15},
		ReleaseWindowWeeks:  3,
		MinMoviesPerTheater: 1,
		Peak:                PeakHours{Start: "17:00", End: "22:00", DensityMultiplier: 1.5},
		ScheduleDays:        21,
		CutoffMaxDays:       21,
		DefaultRuntime:      120,
	}
}

// ReleaseWindow returns how far back a release may be to get showtimes.
func (s Settings) ReleaseWindow() time.Duration {
	return time.Duration(s.ReleaseWindowWeeks) * 7 * 24 * time.Hour
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
