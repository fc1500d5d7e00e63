package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// Default endpoints.
const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/original"
)

const (
	endpointDiscover = "discover"
	endpointDetails  = "details"
	endpointImage    = "image"

	appendToResponse = "credits,videos,keywords,recommendations"
)

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb API error: status %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Options configure a Client.
type Options struct {
	APIKey        string
	BaseURL       string
	Language      string
	Timeout       time.Duration
	RatePerSecond float64 // 0 = unlimited
}

// Client implements domain.Catalog using the TMDB v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a TMDB client. Requests are paced by a token bucket and
// guarded by a circuit breaker that opens after five consecutive failures.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		breaker: newBreaker("tmdb", logger),
		logger:  logger,
		metrics: metrics,
	}
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing movie says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Discover returns one page of /discover/movie.
func (c *Client) Discover(ctx context.Context, q domain.DiscoverQuery, page int) (domain.DiscoverPage, error) {
	params := discoverParams(q, page)
	if params.Get("language") == "" {
		params.Set("language", c.language)
	}

	body, err := c.get(ctx, endpointDiscover, "/discover/movie", params)
	if err != nil {
		return domain.DiscoverPage{}, fmt.Errorf("discover page %d: %w", page, err)
	}
	var out domain.DiscoverPage
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.DiscoverPage{}, fmt.Errorf("decode discover page %d: %w", page, err)
	}
	return out, nil
}

// MovieDetails returns /movie/{id} with credits, videos, keywords and
// recommendations appended.
func (c *Client) MovieDetails(ctx context.Context, id int64) (domain.MovieDetail, error) {
	params := url.Values{
		"append_to_response": {appendToResponse},
		"language":           {c.language},
	}
	body, err := c.get(ctx, endpointDetails, "/movie/"+strconv.FormatInt(id, 10), params)
	if err != nil {
		return domain.MovieDetail{}, fmt.Errorf("movie %d details: %w", id, err)
	}
	var out domain.MovieDetail
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.MovieDetail{}, fmt.Errorf("decode movie %d: %w", id, err)
	}
	return out, nil
}

func discoverParams(q domain.DiscoverQuery, page int) url.Values {
	params := url.Values{
		"include_adult": {"false"},
		"page":          {strconv.Itoa(page)},
	}
	if q.SortBy != "" {
		params.Set("sort_by", q.SortBy)
	}
	if q.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}
	if q.MinVoteAverage > 0 {
		params.Set("vote_average.gte", strconv.FormatFloat(q.MinVoteAverage, 'f', -1, 64))
	}
	if q.ReleaseYearStart > 0 {
		params.Set("primary_release_date.gte", fmt.Sprintf("%d-01-01", q.ReleaseYearStart))
	}
	if q.ReleaseYearEnd > 0 {
		params.Set("primary_release_date.lte", fmt.Sprintf("%d-12-31", q.ReleaseYearEnd))
	}
	if len(q.GenresInclude) > 0 {
		params.Set("with_genres", joinIDs(q.GenresInclude))
	}
	if len(q.GenresExclude) > 0 {
		params.Set("without_genres", joinIDs(q.GenresExclude))
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	return params
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	params.Set("api_key", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, fullURL, endpoint)
	})
	c.metrics.CatalogAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	c.metrics.CatalogRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	if err != nil {
		c.logger.Debug("tmdb request failed", "endpoint", endpoint, "path", path, "error", err)
	}
	return body, err
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, redactKey(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return body, nil
}

// redactKey strips the api_key parameter from the URL carried by transport
// errors so the key never reaches logs.
func redactKey(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		return &url.Error{Op: urlErr.Op, URL: "<redacted>", Err: urlErr.Err}
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "error"
	}
}
