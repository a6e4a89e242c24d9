// Package scraper holds the shared toolkit used by every listing source:
// the Scraper contract, fetch policy, pagination and HTML card parsing.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/utils"
)

// Scraper is implemented by every listing source.
type Scraper interface {
	Source() models.Source
	// Scrape walks the search results for city (and optionally suburb).
	Scrape(ctx context.Context, city, suburb string) (*models.ScraperResult, error)
	// ScrapeListingPage parses one search results page.
	ScrapeListingPage(ctx context.Context, url string) ([]*models.Listing, error)
	// ScrapePropertyDetail parses one listing page. It returns nil, nil when
	// no price could be resolved.
	ScrapePropertyDetail(ctx context.Context, url string) (*models.Listing, error)
}

// DefaultUserAgents is the rotation pool used when a source configures none.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Config is the per-source fetch policy.
type Config struct {
	Source    models.Source
	BaseURL   string
	SearchURL string

	// RateLimit is in requests per second.
	RateLimit       float64
	MaxPages        int
	UserAgents      []string
	DelayMultiplier float64

	// AuthTerminal makes 401/403 stop the run for this source.
	AuthTerminal bool
	AuthMessage  string
	Cookies      string

	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxBodyBytes   int64
	ProbeMinBytes  int
}

func (c Config) withDefaults() Config {
	if c.RateLimit <= 0 {
		c.RateLimit = 1
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	if c.DelayMultiplier <= 0 {
		c.DelayMultiplier = 1
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 8 << 20
	}
	if c.AuthMessage == "" {
		c.AuthMessage = "authentication required; provide session cookies"
	}
	return c
}

// Deps are the collaborators a scraper needs beyond its Config.
type Deps struct {
	Logger  *utils.Logger
	Metrics *metrics.Collector
	Client  *http.Client
}

var (
	// ErrNoWorkingURL means no candidate search URL returned a usable page.
	ErrNoWorkingURL = errors.New("no working search url")
	// ErrAuthRequired is returned when a source serves a login wall instead
	// of results, even with a 2xx status.
	ErrAuthRequired = errors.New("authentication required")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func statusOf(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	return 0, false
}

// IsNotFound reports a 404/410 response.
func IsNotFound(err error) bool {
	code, ok := statusOf(err)
	return ok && (code == http.StatusNotFound || code == http.StatusGone)
}

// IsAuthRequired reports a 401/403 response or ErrAuthRequired.
func IsAuthRequired(err error) bool {
	if errors.Is(err, ErrAuthRequired) {
		return true
	}
	code, ok := statusOf(err)
	return ok && (code == http.StatusUnauthorized || code == http.StatusForbidden)
}

// IsRetryable reports transient failures: transport errors, 408, 429 and 5xx.
// Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrAuthRequired) {
		return false
	}
	code, ok := statusOf(err)
	if !ok {
		return true
	}
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}
