// Package privateproperty scrapes rental listings from privateproperty.co.za.
package privateproperty

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
	"rental-scraper/scraper"
)

const (
	BaseURL   = "https://www.privateproperty.co.za"
	SearchURL = BaseURL + "/to-rent"

	defaultCity = "cape-town"
)

// DefaultConfig is the production fetch policy for the source.
func DefaultConfig() scraper.Config {
	return scraper.Config{
		Source:        models.SourcePrivateProperty,
		BaseURL:       BaseURL,
		SearchURL:     SearchURL,
		RateLimit:     2,
		MaxPages:      10,
		UserAgents:    scraper.DefaultUserAgents,
		ProbeMinBytes: 10000,
	}
}

var rules = scraper.ParseRules{
	Containers: []string{
		"article[class*=listing]",
		"div[class*=property-card]",
		"div[class*=result-item]",
		"div[class*=listing-item]",
		"li[class*=property]",
	},
	DetailLink:      regexp.MustCompile(`^(?:https?://[^/]*privateproperty\.co\.za)?/to-rent/(?:[^/?#]+/)+[A-Za-z]*\d+/?$`),
	SkipLink:        regexp.MustCompile(`[?&]page=`),
	ImageExclude:    []string{"placeholder", "logo"},
	DefaultCity:     "Cape Town",
	DefaultProvince: "Western Cape",
}

var listingHint = regexp.MustCompile(`(?i)property|listing|rent`)

type Scraper struct {
	*scraper.Base
}

func New(cfg scraper.Config, deps scraper.Deps) *Scraper {
	return &Scraper{Base: scraper.NewBase(cfg, deps)}
}

func (s *Scraper) Source() models.Source { return models.SourcePrivateProperty }

// Scrape probes the candidate search URLs for city, then paginates the first
// one that serves a listing page.
func (s *Scraper) Scrape(ctx context.Context, city, suburb string) (*models.ScraperResult, error) {
	start := time.Now()
	if city == "" {
		city = defaultCity
	}

	candidates := s.candidateURLs(slug(city), slug(suburb))
	working := s.probe(ctx, candidates)
	if working == "" {
		msg := fmt.Sprintf("%v for city %s: tried %d patterns", scraper.ErrNoWorkingURL, city, len(candidates))
		s.Logger().Error("%s %s", s.Tag(), msg)
		return &models.ScraperResult{Errors: []string{msg}, Duration: time.Since(start)}, nil
	}

	res := s.Paginate(ctx, func(page int) string {
		return pageURL(working, page)
	}, s.ScrapeListingPage)
	res.Duration = time.Since(start)
	return res, nil
}

func (s *Scraper) candidateURLs(city, suburb string) []string {
	cfg := s.Config()
	var out []string
	if suburb != "" {
		out = append(out, cfg.SearchURL+"/"+city+"/"+suburb)
	}
	return append(out,
		cfg.SearchURL+"/"+city,
		cfg.SearchURL+"/"+city+"/",
		cfg.BaseURL+"/to-rent/western-cape/"+city,
		cfg.SearchURL+"?location="+url.QueryEscape(city),
		cfg.SearchURL,
	)
}

// probe returns the first candidate that answers 2xx with a body large
// enough to be a results page.
func (s *Scraper) probe(ctx context.Context, candidates []string) string {
	minBytes := s.Config().ProbeMinBytes
	for _, u := range candidates {
		if ctx.Err() != nil {
			return ""
		}
		s.Logger().Debug("%s probing %s", s.Tag(), u)
		body, err := s.Fetch(ctx, u, "")
		if err != nil {
			s.Logger().Debug("%s probe %s: %v", s.Tag(), u, err)
			continue
		}
		if len(body) > minBytes && listingHint.MatchString(body) {
			s.Logger().Info("%s using search url %s", s.Tag(), u)
			return u
		}
	}
	return ""
}

func pageURL(working string, page int) string {
	if page == 1 {
		return working
	}
	sep := "?"
	if strings.Contains(working, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", working, sep, page)
}

func (s *Scraper) ScrapeListingPage(ctx context.Context, u string) ([]*models.Listing, error) {
	return s.Base.ScrapeListingPage(ctx, u, rules, s.parseCard, s.ScrapePropertyDetail)
}

func (s *Scraper) parseCard(card *goquery.Selection, pageURL string) (*models.Listing, error) {
	return s.ParseCard(card, pageURL, rules)
}

func (s *Scraper) ScrapePropertyDetail(ctx context.Context, u string) (*models.Listing, error) {
	body, err := s.Fetch(ctx, u, s.Config().SearchURL)
	if err != nil {
		return nil, err
	}
	return s.ParseDetail(body, u, rules)
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "-", " "))), "-")
}
