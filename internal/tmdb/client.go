// Package tmdb is the client for the upstream movie catalog API. Requests are
// rate limited and retried on transient failure; callers never see partial
// pages.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/moviemetric/moviemetric/pkg/models"
)

// Sentinel errors for upstream catalog failures.
var (
	ErrUpstreamUnreachable = errors.New("catalog upstream unreachable")
	ErrUpstreamStatus      = errors.New("catalog upstream error status")
	ErrUpstreamTimeout     = errors.New("catalog upstream timeout")
)

// List endpoints the catalog exposes as paginated movie lists.
const (
	EndpointPopular    = "popular"
	EndpointTopRated   = "top_rated"
	EndpointNowPlaying = "now_playing"
	EndpointUpcoming   = "upcoming"
)

const maxRetries = 3

// Client is the interface for fetching raw catalog records.
type Client interface {
	ListPage(ctx context.Context, endpoint string, page int) ([]RawMovie, error)
	TrendingWeek(ctx context.Context, page int) ([]RawMovie, error)
	Discover(ctx context.Context, sortBy string, page int) ([]RawMovie, error)
	Genres(ctx context.Context) ([]models.Genre, error)
	MovieDetails(ctx context.Context, id int64) (*MovieDetails, error)
}

// RawMovie is one record of a paginated catalog list response.
type RawMovie struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	GenreIDs      []int   `json:"genre_ids"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
}

// MovieDetails is the full record for one movie, including fields the list
// responses omit.
type MovieDetails struct {
	ID          int64          `json:"id"`
	Runtime     int            `json:"runtime"`
	Budget      int64          `json:"budget"`
	Revenue     int64          `json:"revenue"`
	Tagline     string         `json:"tagline"`
	Status      string         `json:"status"`
	Genres      []models.Genre `json:"genres"`
	VoteAverage float64        `json:"vote_average"`
	VoteCount   int            `json:"vote_count"`
	Popularity  float64        `json:"popularity"`
}

// HTTPClient implements Client against the catalog's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a new catalog HTTP client. requestsPerSec bounds the
// outgoing request rate across all callers of this client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, requestsPerSec float64) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

func (c *HTTPClient) ListPage(ctx context.Context, endpoint string, page int) ([]RawMovie, error) {
	switch endpoint {
	case EndpointPopular, EndpointTopRated, EndpointNowPlaying, EndpointUpcoming:
	default:
		return nil, fmt.Errorf("unknown list endpoint %q", endpoint)
	}

	var resp pageResponse
	params := url.Values{"page": {strconv.Itoa(page)}, "language": {"en-US"}}
	if err := c.get(ctx, "/movie/"+endpoint, params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) TrendingWeek(ctx context.Context, page int) ([]RawMovie, error) {
	var resp pageResponse
	params := url.Values{"page": {strconv.Itoa(page)}, "language": {"en-US"}}
	if err := c.get(ctx, "/trending/movie/week", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) Discover(ctx context.Context, sortBy string, page int) ([]RawMovie, error) {
	var resp pageResponse
	params := url.Values{
		"page":           {strconv.Itoa(page)},
		"language":       {"en-US"},
		"sort_by":        {sortBy},
		"vote_count.gte": {"50"},
	}
	if err := c.get(ctx, "/discover/movie", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) Genres(ctx context.Context) ([]models.Genre, error) {
	var resp genresResponse
	params := url.Values{"language": {"en-US"}}
	if err := c.get(ctx, "/genre/movie/list", params, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

func (c *HTTPClient) MovieDetails(ctx context.Context, id int64) (*MovieDetails, error) {
	var details MovieDetails
	params := url.Values{"language": {"en-US"}}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// get performs a rate-limited GET with retries on transient failures and
// decodes the JSON body into out.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return classifyError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUpstreamStatus, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUpstreamStatus, resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding catalog response: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(operation, bo)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrUpstreamTimeout, err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}

// --- Catalog response types ---

type pageResponse struct {
	Page       int        `json:"page"`
	Results    []RawMovie `json:"results"`
	TotalPages int        `json:"total_pages"`
}

type genresResponse struct {
	Genres []models.Genre `json:"genres"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
