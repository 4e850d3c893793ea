// Package backend talks to the external weather, news, risk and AIS providers.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"

	// defaultMaxBodyBytes bounds provider responses.
	defaultMaxBodyBytes = 1 << 20

	weatherPath = "/weather/api/weather"
	newsPath    = "/news/api/news"
	riskPath    = "/langchain_agent/api/langchain_agent"
	aisPath     = "/ais/api/positions"
)

// Config holds provider client configuration loaded from environment variables.
type Config struct {
	BaseURL      string        // Provider base URL (default: http://localhost:8000)
	Timeout      time.Duration // Per-request timeout (default: 10s)
	MaxBodyBytes int64         // Response size limit (default: 1 MiB)
}

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Provider, e.Code)
}

// Client retrieves panel data from the providers.
type Client struct {
	baseURL    string
	maxBody    int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		maxBody: cfg.MaxBodyBytes,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the configured provider base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Weather returns current conditions near lat/lon.
func (c *Client) Weather(ctx context.Context, lat, lon float64) (WeatherReport, error) {
	body, err := c.get(ctx, "weather", weatherPath, pointQuery(lat, lon))
	if err != nil {
		return WeatherReport{}, err
	}

	var w WeatherReport
	if err := json.Unmarshal(body, &w); err != nil {
		return WeatherReport{}, fmt.Errorf("weather: decoding response: %w", err)
	}
	return w, nil
}

// News returns up to limit articles, deduplicated by title, newest first.
func (c *Client) News(ctx context.Context, limit int) ([]NewsArticle, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.get(ctx, "news", newsPath, q)
	if err != nil {
		return nil, err
	}

	var articles []NewsArticle
	if err := json.Unmarshal(body, &articles); err != nil {
		return nil, fmt.Errorf("news: decoding response: %w", err)
	}

	articles = dedupeNews(articles)
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// dedupeNews drops repeated titles (case-insensitive) keeping the newest copy,
// then orders the result newest first.
func dedupeNews(articles []NewsArticle) []NewsArticle {
	slices.SortStableFunc(articles, func(a, b NewsArticle) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	seen := make(map[string]bool, len(articles))
	out := articles[:0]
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// Risk returns the geopolitical risk score near lat/lon.
func (c *Client) Risk(ctx context.Context, lat, lon float64) (RiskLevel, error) {
	body, err := c.get(ctx, "risk", riskPath, pointQuery(lat, lon))
	if err != nil {
		return RiskLevel{}, err
	}

	score, err := ParseRiskScore(body)
	if err != nil {
		return RiskLevel{}, fmt.Errorf("risk: %w", err)
	}
	return RiskLevel{
		Latitude:  lat,
		Longitude: lon,
		Score:     score,
		Level:     RiskBand(score),
	}, nil
}

// Positions returns the upstream AIS feed's latest vessel reports. Reports
// with coordinates outside the valid range are dropped.
func (c *Client) Positions(ctx context.Context) ([]VesselReport, error) {
	body, err := c.get(ctx, "ais", aisPath, nil)
	if err != nil {
		return nil, err
	}

	var reports []VesselReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, fmt.Errorf("ais: decoding response: %w", err)
	}

	valid := reports[:0]
	for _, r := range reports {
		if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 {
			continue
		}
		valid = append(valid, r)
	}
	if dropped := len(reports) - len(valid); dropped > 0 {
		c.logger.Warn("ais reports dropped", "dropped", dropped, "kept", len(valid))
	}
	return valid, nil
}

// ParseRiskScore accepts a bare JSON number or a quoted number in [0, 1].
func ParseRiskScore(body []byte) (float64, error) {
	s := strings.TrimSpace(string(body))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing score %q: %w", s, err)
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("score %g outside [0, 1]", score)
	}
	return score, nil
}

func pointQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return q
}

// get performs a GET against the provider and returns the size-limited body.
func (c *Client) get(ctx context.Context, provider, path string, q url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: provider, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response body: %w", provider, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%s: response exceeds %d byte limit", provider, c.maxBody)
	}

	c.logger.Debug("provider request complete",
		"provider", provider,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}
