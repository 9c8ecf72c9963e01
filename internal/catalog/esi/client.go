package esi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/respcache"
	"holdings-server/internal/metrics"
	"holdings-server/internal/shared/config"
	"holdings-server/internal/shared/errors"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

type Options struct {
	BaseURL           string
	Datasource        string
	UserAgent         string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	BurstSize         int
	CacheTTL          time.Duration
}

func OptionsFromConfig(cfg config.ESIConfig) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		Datasource:        cfg.Datasource,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		Retries:           cfg.Retries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		BurstSize:         cfg.BurstSize,
		CacheTTL:          cfg.CacheTTL,
	}
}

// Client talks to the EVE Swagger Interface. Public reference lookups go
// through the response cache; character endpoints are always fetched.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	cache   respcache.Cache
	logger  *slog.Logger
}

// NewClient builds a client. tokens may be nil for public-only use; cache
// may be nil to disable response caching.
func NewClient(opts Options, tokens oauth2.TokenSource, cache respcache.Cache, logger *slog.Logger) *Client {
	logger.Debug("Initializing ESI client", "base_url", opts.BaseURL, "authenticated", tokens != nil, "cached", cache != nil)

	var transport http.RoundTripper = gzhttp.Transport(http.DefaultTransport)
	if tokens != nil {
		transport = &oauth2.Transport{Source: tokens, Base: transport}
	}

	burst := opts.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		cache:   cache,
		logger:  logger,
	}
}

// ESI answers 420 when the error budget is exhausted
const statusErrorLimited = 420

type request struct {
	method    string
	path      string
	query     url.Values
	body      []byte
	cacheable bool
}

type response struct {
	body   []byte
	header http.Header
}

func (c *Client) endpoint(r request) string {
	q := url.Values{}
	for k, v := range r.query {
		q[k] = v
	}
	if c.opts.Datasource != "" {
		q.Set("datasource", c.opts.Datasource)
	}
	u := c.opts.BaseURL + r.path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do performs a request with the configured retry count. Forbidden and not
// found answers are returned at once; server errors and transport failures
// are retried.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	logger := c.logger.With("component", "esi_client", "operation", "request", "method", r.method, "path", r.path)
	endpoint := c.endpoint(r)

	if r.cacheable && c.cache != nil {
		if data, found, err := c.cache.Get(ctx, endpoint); err != nil {
			logger.Warn("Response cache read failed", "error", err)
		} else if found {
			metrics.ESICacheHitsTotal.Inc()
			return &response{body: data, header: http.Header{}}, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, retry, err := c.send(ctx, r, endpoint)
		if err == nil {
			if r.cacheable && c.cache != nil {
				if err := c.cache.Set(ctx, endpoint, resp.body, c.opts.CacheTTL); err != nil {
					logger.Warn("Response cache write failed", "error", err)
				}
			}
			return resp, nil
		}
		if !retry {
			return nil, err
		}

		lastErr = err
		logger.Debug("Retrying ESI request", "attempt", attempt+1, "error", err)
	}

	return nil, errors.WrapExternal(fmt.Sprintf("ESI %s %s failed", r.method, r.path), lastErr)
}

func (c *Client) send(ctx context.Context, r request, endpoint string) (*response, bool, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return nil, false, errors.WrapInternal("failed to build ESI request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ESIRequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.ESIRequestsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	metrics.ESIRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode/100) + "xx").Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read ESI response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &response{body: data, header: resp.Header}, false, nil
	case resp.StatusCode == http.StatusForbidden:
		return nil, false, errors.WrapForbidden(fmt.Sprintf("ESI denied %s", r.path), catalog.ErrForbidden)
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("ESI %s: %w", r.path, catalog.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, errors.Unauthorized(fmt.Sprintf("ESI rejected credentials for %s", r.path))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusErrorLimited:
		return nil, true, fmt.Errorf("ESI %s answered %d", r.path, resp.StatusCode)
	default:
		return nil, false, errors.External(fmt.Sprintf("ESI %s answered %d: %s", r.path, resp.StatusCode, truncate(data, 200)))
	}
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n])
	}
	return string(data)
}
