// Package osrm queries an OSRM routing server's /table service for
// travel-time and distance matrices.
package osrm

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/juanocv/magalu-cd-location/internal/resilience"
)

const (
	// DefaultBaseURL targets a local OSRM instance, the usual setup for the
	// full Northeast road network.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultDestinationChunk is how many destinations go into one /table
	// call when chunking.
	DefaultDestinationChunk = 100
)

// Point is a WGS84 coordinate. OSRM's wire order is lon,lat; the client
// handles that, callers think in lat/lon.
type Point struct {
	Lat float64
	Lon float64
}

// TableRequest asks for the matrix between every source and every
// destination.
type TableRequest struct {
	Sources      []Point
	Destinations []Point

	// WithDistance also requests the distance matrix. Duration is always
	// requested.
	WithDistance bool
}

// TableResult holds /table matrices indexed [source][destination].
// Durations are seconds and distances meters, as OSRM reports them;
// unreachable pairs are NaN.
type TableResult struct {
	Durations [][]float64
	Distances [][]float64 // nil unless WithDistance was set
}

// Client computes travel matrices against an OSRM server.
type Client interface {
	// Table runs a single /table call.
	Table(ctx context.Context, req TableRequest) (*TableResult, error)

	// TableChunked splits the destinations into batches of chunk (default
	// DefaultDestinationChunk) and stitches the partial matrices together.
	// Public servers reject the URL length of a 500-municipality call;
	// chunking keeps each request modest.
	TableChunked(ctx context.Context, req TableRequest, chunk int) (*TableResult, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at a different OSRM server.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithProfile selects the routing profile (default "driving").
func WithProfile(p string) Option {
	return func(c *client) {
		c.profile = p
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. Keep it low against the
// public demo server.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates an OSRM client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		profile:    "driving",
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("osrm", "table")
	}
	return c
}
