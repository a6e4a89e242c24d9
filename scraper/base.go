package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/utils"
)

// Base carries the fetch policy shared by all sources: user agent rotation,
// request spacing, timeouts and retry. Each scraper instance owns one Base,
// so rotation and spacing are never shared between instances.
type Base struct {
	cfg     Config
	base    *url.URL
	logger  *utils.Logger
	metrics *metrics.Collector
	client  *http.Client
	limiter *rate.Limiter
	tag     string

	mu      sync.Mutex
	uaIndex int
}

// NewBase builds a Base for cfg. A nil Client gets a default one.
func NewBase(cfg Config, deps Deps) *Base {
	cfg = cfg.withDefaults()
	b := &Base{
		cfg:     cfg,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		client:  deps.Client,
		tag:     "[" + string(cfg.Source) + "]",
	}
	if b.logger == nil {
		b.logger = utils.NewDiscardLogger()
	}
	if b.client == nil {
		b.client = &http.Client{}
	}
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		b.base = u
	}
	interval := time.Duration(float64(b.RateLimitDelay()) * cfg.DelayMultiplier)
	b.limiter = rate.NewLimiter(rate.Every(interval), 1)
	return b
}

func (b *Base) Config() Config { return b.cfg }

func (b *Base) BaseURL() *url.URL { return b.base }

func (b *Base) Logger() *utils.Logger { return b.logger }

func (b *Base) Metrics() *metrics.Collector { return b.metrics }

// Tag is the log prefix for this source, e.g. "[property24]".
func (b *Base) Tag() string { return b.tag }

// RateLimitDelay is ceil(1000 / requests-per-second) milliseconds.
func (b *Base) RateLimitDelay() time.Duration {
	return RateLimitDelay(b.cfg.RateLimit)
}

// RateLimitDelay converts a requests-per-second budget into the minimum gap
// between requests, rounded up to whole milliseconds.
func RateLimitDelay(requestsPerSecond float64) time.Duration {
	if requestsPerSecond <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(1000/requestsPerSecond)) * time.Millisecond
}

// NextUserAgent returns agents round-robin.
func (b *Base) NextUserAgent() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ua := b.cfg.UserAgents[b.uaIndex]
	b.uaIndex = (b.uaIndex + 1) % len(b.cfg.UserAgents)
	return ua
}

// Fetch GETs target and returns the body. Every attempt, retries included,
// first waits for the rate limiter.
func (b *Base) Fetch(ctx context.Context, target, referer string) (string, error) {
	retry := &utils.RetryConfig{
		MaxAttempts: b.cfg.MaxRetries,
		BaseDelay:   b.cfg.RetryBaseDelay,
		MaxDelay:    10 * time.Second,
		Logger:      b.logger,
		Retryable: func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return IsRetryable(err)
		},
	}

	var body string
	err := retry.Do(ctx, b.tag+" GET "+target, func() error {
		var err error
		body, err = b.fetchOnce(ctx, target, referer)
		return err
	})
	return body, err
}

func (b *Base) fetchOnce(ctx context.Context, target, referer string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if referer == "" {
		referer = b.cfg.BaseURL
	}
	req.Header.Set("User-Agent", b.NextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-ZA,en;q=0.9")
	req.Header.Set("Referer", referer)
	if b.cfg.Cookies != "" {
		req.Header.Set("Cookie", b.cfg.Cookies)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.metrics.ObserveFetch(string(b.cfg.Source), 0, time.Since(start))
		return "", err
	}
	defer resp.Body.Close()
	b.metrics.ObserveFetch(string(b.cfg.Source), resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: target}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	b.logger.Debug("%s received %d bytes from %s", b.tag, len(data), target)
	return string(data), nil
}

// Resolve makes href absolute against the source's base URL.
func (b *Base) Resolve(href string) string {
	if b.base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.base.ResolveReference(ref).String()
}

// Paginate drives pages 1..MaxPages in order through scrapePage.
//
// It stops at the first empty page. A not-found on page 1 aborts the run
// (the URL scheme is presumed wrong); on later pages it just ends
// pagination. For AuthTerminal sources a 401/403 ends the run. Any other
// page error is recorded as "Page N: ..." and pagination continues.
func (b *Base) Paginate(ctx context.Context, pageURL func(page int) string,
	scrapePage func(ctx context.Context, url string) ([]*models.Listing, error)) *models.ScraperResult {

	start := time.Now()
	res := &models.ScraperResult{}
	aborted := false

pages:
	for page := 1; page <= b.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Page %d: %v", page, err))
			break
		}

		target := pageURL(page)
		b.logger.Info("%s scraping page %d/%d: %s", b.tag, page, b.cfg.MaxPages, target)
		listings, err := scrapePage(ctx, target)
		if err != nil {
			switch {
			case IsNotFound(err) && page == 1:
				b.logger.Error("%s page 1 not found, url structure may be wrong: %v", b.tag, err)
				res.Errors = append(res.Errors, fmt.Sprintf("Page 1: %v", err))
				aborted = true
				break pages
			case IsNotFound(err):
				b.logger.Info("%s page %d not found, stopping pagination", b.tag, page)
				break pages
			case b.cfg.AuthTerminal && IsAuthRequired(err):
				res.Errors = append(res.Errors, fmt.Sprintf("Page %d: %v", page, err), b.cfg.AuthMessage)
				b.logger.Warn("%s %s", b.tag, b.cfg.AuthMessage)
				break pages
			case ctx.Err() != nil:
				res.Errors = append(res.Errors, fmt.Sprintf("Page %d: %v", page, err))
				break pages
			default:
				b.logger.Error("%s page %d: %v", b.tag, page, err)
				res.Errors = append(res.Errors, fmt.Sprintf("Page %d: %v", page, err))
				continue
			}
		}

		if len(listings) == 0 {
			b.logger.Info("%s no listings on page %d, stopping pagination", b.tag, page)
			break
		}
		res.Listings = append(res.Listings, listings...)
		res.PagesScraped++
		b.metrics.PageScraped(string(b.cfg.Source), len(listings))
		b.logger.Info("%s page %d: %d listings", b.tag, page, len(listings))
	}

	res.Success = !aborted && (len(res.Listings) > 0 || len(res.Errors) == 0)
	res.Duration = time.Since(start)
	return res
}

// FetchDetails scrapes detail pages in discovery order. Failures are logged
// and skipped; cancellation stops the loop.
func (b *Base) FetchDetails(ctx context.Context, links []string,
	detail func(ctx context.Context, url string) (*models.Listing, error)) []*models.Listing {

	var out []*models.Listing
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		l, err := detail(ctx, link)
		if err != nil {
			b.logger.Warn("%s detail %s: %v", b.tag, link, err)
			continue
		}
		if l != nil {
			out = append(out, l)
		}
	}
	b.logger.Info("%s %d detail links, %d listings", b.tag, len(links), len(out))
	return out
}
