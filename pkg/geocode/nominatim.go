package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/urban-climate-lab/resilience-cli/internal/resilience"
)

// DefaultNominatimBaseURL is the public OSM Nominatim instance.
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// nominatimResult is one entry of the Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider geocodes free text against a Nominatim search
// endpoint. Usage policy for the public instance caps clients at one
// request per second, enforced here with a rate limiter.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	viewbox    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL overrides the endpoint (self-hosted instances,
// tests).
func WithNominatimBaseURL(base string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = base }
}

// WithNominatimHTTPClient overrides the HTTP client.
func WithNominatimHTTPClient(c *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = c }
}

// WithNominatimViewbox biases results toward a bounding box
// ("minLng,minLat,maxLng,maxLat"), keeping city queries inside the
// city.
func WithNominatimViewbox(viewbox string) NominatimOption {
	return func(p *NominatimProvider) { p.viewbox = viewbox }
}

// WithNominatimRateLimit overrides the default 1 rps limiter.
func WithNominatimRateLimit(limit rate.Limit, burst int) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = rate.NewLimiter(limit, burst) }
}

// WithNominatimRetry overrides the backoff used for transient upstream
// failures.
func WithNominatimRetry(cfg resilience.RetryConfig) NominatimOption {
	return func(p *NominatimProvider) { p.retry = cfg }
}

// NewNominatimProvider creates a provider with the given User-Agent,
// which the public instance requires to identify the application.
func NewNominatimProvider(userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    DefaultNominatimBaseURL,
		userAgent:  userAgent,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return p.userAgent != "" }

// Geocode implements Provider. Transient upstream failures (429, 5xx,
// timeouts) are retried with backoff; each attempt still goes through
// the rate limiter.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	return resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*Result, error) {
		return p.search(ctx, query)
	})
}

func (p *NominatimProvider) search(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	if p.viewbox != "" {
		params.Set("viewbox", p.viewbox)
		params.Set("bounded", "1")
	}

	reqURL := p.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(results) == 0 {
		zap.L().Debug("geocode: nominatim no result", zap.String("query", query))
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse latitude")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse longitude")
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Label:     results[0].DisplayName,
		Source:    "nominatim",
		Matched:   true,
	}, nil
}
