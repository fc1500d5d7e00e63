package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/showtime"
	"github.com/couchcryptid/movie-data-etl/internal/theater"
)

// RulesEnvPrefix marks environment overrides of the rules file. A double
// underscore separates nesting levels:
// MOVIEETL_SHOWTIMES__SCHEDULE_DAYS=7 sets showtimes.schedule_days.
const RulesEnvPrefix = "MOVIEETL_"

// MovieRules are the catalog discovery filters and fetch limits.
type MovieRules struct {
	Count            int           `koanf:"count" validate:"gte=1"`
	MaxPages         int           `koanf:"max_pages" validate:"gte=1"`
	SortBy           string        `koanf:"sort_by" validate:"oneof=popularity.desc release_date.desc vote_average.desc revenue.desc"`
	MinVoteCount     int           `koanf:"min_vote_count" validate:"gte=0"`
	MinVoteAverage   float64       `koanf:"min_vote_average" validate:"gte=0,lte=10"`
	ReleaseYearStart int           `koanf:"release_year_start" validate:"omitempty,gte=1874"`
	ReleaseYearEnd   int           `koanf:"release_year_end" validate:"omitempty,gtefield=ReleaseYearStart"`
	GenresInclude    []int64       `koanf:"genres_include"`
	GenresExclude    []int64       `koanf:"genres_exclude"`
	Language         string        `koanf:"language"`
	DownloadImages   bool          `koanf:"download_images"`
	PageDelay        time.Duration `koanf:"page_delay" validate:"gte=0"`
	RetryDelay       time.Duration `koanf:"retry_delay" validate:"gte=0"`
	MaxRetries       int           `koanf:"max_retries" validate:"gte=0"`
}

// Query converts the filters into a catalog query.
func (m MovieRules) Query() domain.DiscoverQuery {
	return domain.DiscoverQuery{
		SortBy:           m.SortBy,
		MinVoteCount:     m.MinVoteCount,
		MinVoteAverage:   m.MinVoteAverage,
		ReleaseYearStart: m.ReleaseYearStart,
		ReleaseYearEnd:   m.ReleaseYearEnd,
		GenresInclude:    m.GenresInclude,
		GenresExclude:    m.GenresExclude,
		Language:         m.Language,
	}
}

// CensusRules locate the Census Bureau source files.
type CensusRules struct {
	GazetteerURL     string `koanf:"gazetteer_url" validate:"required,url"`
	PopulationURL    string `koanf:"population_url" validate:"required,url"`
	PopulationColumn string `koanf:"population_column" validate:"required"`
}

// Rules is the optional YAML rules file.
type Rules struct {
	Movies    MovieRules        `koanf:"movies"`
	Theaters  theater.Rules     `koanf:"theaters"`
	Showtimes showtime.Settings `koanf:"showtimes"`
	Census    CensusRules       `koanf:"census"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() *Rules {
	return &Rules{
		Movies: MovieRules{
			Count:          50,
			MaxPages:       50,
			SortBy:         "popularity.desc",
			MinVoteCount:   1000,
			MinVoteAverage: 6.0,
			Language:       "en-US",
			DownloadImages: true,
			PageDelay:      250 * time.Millisecond,
			RetryDelay:     5 * time.Second,
			MaxRetries:     3,
		},
		Theaters:  theater.DefaultRules(),
		Showtimes: showtime.DefaultSettings(),
		Census: CensusRules{
			GazetteerURL:     "https://www2.census.gov/geo/docs/maps-data/data/gazetteer/2024_Gazetteer/2024_Gaz_place_national.zip",
			PopulationURL:    "https://www2.census.gov/programs-surveys/popest/datasets/2020-2023/cities/totals/sub-est2023.csv",
			PopulationColumn: "POPESTIMATE2023",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRules layers built-in defaults, the YAML file at path (skipped when
// path is empty) and MOVIEETL_ environment overrides, then validates the result.
func LoadRules(path string) (*Rules, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultRules(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load default rules: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load rules file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(RulesEnvPrefix, ".", rulesEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load rules environment: %w", err)
	}

	rules := &Rules{}
	if err := k.Unmarshal("", rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate checks field constraints and cross-table consistency.
func (r *Rules) Validate() error {
	var errs []error
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("rules: %s fails %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, fmt.Errorf("rules: %w", err))
		}
	}
	if err := r.Theaters.CheckTables(); err != nil {
		errs = append(errs, err)
	}
	if _, err := showtime.NewGenerator(r.Showtimes, nil); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// rulesEnvKey maps MOVIEETL_MOVIES__MIN_VOTE_COUNT to movies.min_vote_count.
func rulesEnvKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, RulesEnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
