// Package tools wraps the third-party HTTP services the specialists call:
// geocoding, weather forecasts and trail lookups. Every call goes through
// a [cache.Caller], so results are cached per (endpoint, params) and
// outbound traffic respects the per-endpoint rate limits.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Iron-Ham/basecamp/internal/cache"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
)

// Endpoint identifiers. They key the rate limiter and the cache.
const (
	EndpointNominatim  = "nominatim"
	EndpointWeatherGov = "weather_gov"
	EndpointOverpass   = "overpass"
)

// Default service locations.
const (
	DefaultNominatimURL  = "https://nominatim.openstreetmap.org"
	DefaultWeatherGovURL = "https://api.weather.gov"
	DefaultOverpassURL   = "https://overpass-api.de/api"
	DefaultUserAgent     = "basecamp/0.1 (+https://github.com/Iron-Ham/basecamp)"
)

// Cache lifetimes per tool.
const (
	GeocodeTTL  = 24 * time.Hour
	ForecastTTL = time.Hour
	TrailsTTL   = 6 * time.Hour
)

// maxBody bounds how much of an upstream response is read.
const maxBody = 8 << 20

// Options configures a Client. Zero fields take the defaults above.
type Options struct {
	HTTPClient    *http.Client
	UserAgent     string
	NominatimURL  string
	WeatherGovURL string
	OverpassURL   string
	Logger        *logging.Logger
}

// Client calls the tool services.
type Client struct {
	http      *http.Client
	caller    *cache.Caller
	userAgent string
	nominatim string
	weather   string
	overpass  string
	logger    *logging.Logger
}

// New creates a Client whose calls go through caller. A nil caller calls
// the services directly.
func New(caller *cache.Caller, opts Options) *Client {
	if caller == nil {
		caller = cache.NewCaller(nil, nil, opts.Logger, nil)
	}
	c := &Client{
		http:      opts.HTTPClient,
		caller:    caller,
		userAgent: opts.UserAgent,
		nominatim: opts.NominatimURL,
		weather:   opts.WeatherGovURL,
		overpass:  opts.OverpassURL,
		logger:    logging.OrNop(opts.Logger),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.nominatim == "" {
		c.nominatim = DefaultNominatimURL
	}
	if c.weather == "" {
		c.weather = DefaultWeatherGovURL
	}
	if c.overpass == "" {
		c.overpass = DefaultOverpassURL
	}
	return c
}

// do sends req and returns the body of a 2xx response. Failures are
// ToolErrors carrying the status so the classifier can route them.
func (c *Client) do(endpoint string, req *http.Request) (json.RawMessage, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewToolError(endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.NewToolError(endpoint, "read response", err).WithStatusCode(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewToolError(endpoint, "throttled", errors.ErrRateLimited).WithStatusCode(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.NewToolError(endpoint, fmt.Sprintf("unexpected status %d", resp.StatusCode), errors.ErrUpstream).
			WithStatusCode(resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, errors.NewToolError(endpoint, "response is not json", errors.ErrUpstream).WithStatusCode(resp.StatusCode)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewToolError(endpoint, "build request", err)
	}
	return c.do(endpoint, req)
}
