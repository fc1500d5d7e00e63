package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// City selection strategies for the theaters command.
const (
	SelectByPopulation = "population"
	SelectRandom       = "random"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// TMDB catalog configuration. The API key is only required by the
	// movies command, see RequireCatalog.
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBTimeout      time.Duration
	TMDBRateLimit    float64
	TMDBCacheSize    int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Store writes.
	BatchSize   int
	ErrorPolicy domain.ErrorPolicy

	// Batch driver.
	CityBatchSize int
	DelayMin      time.Duration
	DelayMax      time.Duration
	BatchDelay    time.Duration
	BatchTimeout  time.Duration
	MaxBatches    int
	MaxItems      int
	CitySelection string

	OutputDir  string
	PrettyJSON bool

	// Progress events are disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaProgressTopic string

	RulesPath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	policy, err := domain.ParseErrorPolicy(sharedcfg.EnvOrDefault("ERROR_HANDLING", "skip"))
	if err != nil {
		return nil, fmt.Errorf("invalid ERROR_HANDLING: %w", err)
	}

	cfg := &Config{
		MongoURI:           sharedcfg.EnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      sharedcfg.EnvOrDefault("MONGO_DATABASE", "movie_database"),
		TMDBAPIKey:         sharedcfg.EnvOrDefault("TMDB_API_KEY", ""),
		TMDBBaseURL:        sharedcfg.EnvOrDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL:   sharedcfg.EnvOrDefault("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/original"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		ErrorPolicy:        policy,
		CitySelection:      sharedcfg.EnvOrDefault("CITY_SELECTION", SelectByPopulation),
		OutputDir:          sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")),
		KafkaProgressTopic: sharedcfg.EnvOrDefault("KAFKA_PROGRESS_TOPIC", "movie-etl-progress"),
		RulesPath:          sharedcfg.EnvOrDefault("RULES_PATH", ""),
	}

	var errs []error
	cfg.MongoTimeout = positiveDuration("MONGO_TIMEOUT", "10s", &errs)
	cfg.TMDBTimeout = positiveDuration("TMDB_TIMEOUT", "10s", &errs)
	cfg.DelayMin = nonNegativeDuration("DELAY_MIN", "500ms", &errs)
	cfg.DelayMax = nonNegativeDuration("DELAY_MAX", "1s", &errs)
	cfg.BatchDelay = nonNegativeDuration("BATCH_DELAY", "5s", &errs)
	cfg.BatchTimeout = positiveDuration("BATCH_TIMEOUT", "30m", &errs)
	cfg.TMDBCacheSize = intInRange("TMDB_CACHE_SIZE", 500, 1, 1_000_000, &errs)
	cfg.CityBatchSize = intInRange("CITY_BATCH_SIZE", 10, 1, 10_000, &errs)
	cfg.MaxBatches = intInRange("MAX_BATCHES", 0, 0, 1<<31-1, &errs)
	cfg.MaxItems = intInRange("MAX_ITEMS", 0, 0, 1<<31-1, &errs)

	rate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TMDB_RATE_LIMIT", "4"), 64)
	if err != nil || rate < 0 {
		errs = append(errs, errors.New("invalid TMDB_RATE_LIMIT: must be a non-negative number"))
	}
	cfg.TMDBRateLimit = rate

	pretty, err := strconv.ParseBool(sharedcfg.EnvOrDefault("PRETTY_JSON", "true"))
	if err != nil {
		errs = append(errs, errors.New("invalid PRETTY_JSON"))
	}
	cfg.PrettyJSON = pretty

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if cfg.DelayMax < cfg.DelayMin {
		return nil, errors.New("DELAY_MAX must not be less than DELAY_MIN")
	}
	if cfg.CitySelection != SelectByPopulation && cfg.CitySelection != SelectRandom {
		return nil, fmt.Errorf("invalid CITY_SELECTION %q: want population or random", cfg.CitySelection)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaProgressTopic == "" {
		return nil, errors.New("KAFKA_PROGRESS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// RequireCatalog reports an error when catalog access is not configured.
func (c *Config) RequireCatalog() error {
	if c.TMDBAPIKey == "" {
		return errors.New("TMDB_API_KEY is required")
	}
	return nil
}

// ProgressEventsEnabled reports whether batch progress should be published.
func (c *Config) ProgressEventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// MaskURI hides the password of a connection string for diagnostics.
func MaskURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparsable uri>"
	}
	return u.Redacted()
}

func positiveDuration(key, fallback string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: must be a positive duration", key))
	}
	return d
}

func nonNegativeDuration(key, fallback string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: must be a non-negative duration", key))
	}
	return d
}

func intInRange(key string, fallback, lo, hi int, errs *[]error) int {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		*errs = append(*errs, fmt.Errorf("invalid %s: must be %d-%d", key, lo, hi))
	}
	return n
}
