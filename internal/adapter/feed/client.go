package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/observability"
)

// englandAreaCode is the area code of the national aggregate.
const englandAreaCode = "E92000001"

// Feed describes one downloadable source table.
type Feed struct {
	Name     string // file stem and metric label
	AreaType string
	AreaCode string
	Metric   string
}

// The four published feeds the snapshot is built from.
var (
	RegionCases = Feed{
		Name:     "region_cases",
		AreaType: "region",
		Metric:   "newCasesBySpecimenDateAgeDemographics",
	}
	NationCases = Feed{
		Name:     "nation_cases",
		AreaType: "nation",
		AreaCode: englandAreaCode,
		Metric:   "newCasesBySpecimenDateAgeDemographics",
	}
	Vaccinations = Feed{
		Name:     "vaccinations",
		AreaType: "nation",
		AreaCode: englandAreaCode,
		Metric:   "vaccinationsAgeDemographics",
	}
	Admissions = Feed{
		Name:     "admissions",
		AreaType: "nation",
		AreaCode: englandAreaCode,
		Metric:   "cumAdmissionsByAge",
	}
)

// Feeds lists every downloadable feed.
var Feeds = []Feed{RegionCases, NationCases, Vaccinations, Admissions}

// Client downloads feeds as CSV from the coronavirus dashboard API. Bodies
// are kept in an LRU cache and revalidated with conditional GETs, so an
// unchanged feed costs a 304 and a failed download falls back to the last
// good copy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *lruCache
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed API client. cacheSize is the number of feed
// bodies kept; 0 disables caching.
func NewClient(baseURL string, timeout time.Duration, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		cache:   newLRUCache(cacheSize),
		metrics: metrics,
		logger:  logger,
	}
}

// URL returns the CSV download URL of f.
func (c *Client) URL(f Feed) string {
	params := url.Values{
		"areaType": {f.AreaType},
		"metric":   {f.Metric},
		"format":   {"csv"},
	}
	if f.AreaCode != "" {
		params.Set("areaCode", f.AreaCode)
	}
	return c.baseURL + "?" + params.Encode()
}

// Fetch downloads f, revalidating any cached copy.
func (c *Client) Fetch(ctx context.Context, f Feed) ([]byte, error) {
	u := c.URL(f)
	cached, hasCached := c.cache.get(u)

	start := time.Now()
	body, resp, err := c.doRequest(ctx, u, cached, hasCached)
	c.metrics.FeedAPIDuration.WithLabelValues(f.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(f.Name, "error").Inc()
		if hasCached && ctx.Err() == nil {
			c.metrics.FeedCache.WithLabelValues(f.Name, "stale").Inc()
			c.logger.Warn("feed download failed, serving cached copy", "feed", f.Name, "error", err)
			return cached.body, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", f.Name, err)
	}
	c.metrics.FeedRequests.WithLabelValues(f.Name, "success").Inc()

	if resp.StatusCode == http.StatusNotModified {
		c.metrics.FeedCache.WithLabelValues(f.Name, "revalidated").Inc()
		c.logger.Debug("feed not modified", "feed", f.Name)
		return cached.body, nil
	}

	c.metrics.FeedCache.WithLabelValues(f.Name, "miss").Inc()
	c.cache.put(u, cachedBody{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		body:         body,
	})
	c.logger.Debug("feed downloaded", "feed", f.Name, "bytes", len(body))
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string, cached cachedBody, hasCached bool) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	if hasCached {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hasCached {
		return nil, resp, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return body, resp, nil
}
