// Package property24 scrapes rental listings from property24.com.
package property24

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/scraper/extract"
)

const (
	BaseURL   = "https://www.property24.com"
	SearchURL = BaseURL + "/to-rent"
)

func DefaultConfig() scraper.Config {
	return scraper.Config{
		Source:     models.SourceProperty24,
		BaseURL:    BaseURL,
		SearchURL:  SearchURL,
		RateLimit:  2,
		MaxPages:   10,
		UserAgents: scraper.DefaultUserAgents,
	}
}

var rules = scraper.ParseRules{
	Containers: []string{
		"div[class*=p24_listing]",
		"div[class*=js_listing]",
		"article[class*=listing]",
		"div[class*=property-card]",
		"div[class*=result-item]",
		"li[class*=property]",
	},
	DetailLink:     regexp.MustCompile(`^(?:https?://[^/]*property24\.com)?/to-rent/(?:[^/?#]+/)+\d+/?$`),
	SkipLink:       regexp.MustCompile(`/p\d+/?$`),
	TypeKeywords:   extract.TypeKeywordsExtended,
	ParkingPattern: extract.ParkingGaragePattern,
	DescriptionSelectors: []string{
		"div[class*=description]",
		"section[class*=description]",
		"p[class*=description]",
		"div[class*=p24_description]",
	},
	ImageExclude:    []string{"placeholder", "logo", "icon"},
	DefaultCity:     "Cape Town",
	DefaultProvince: "Western Cape",
}

type Scraper struct {
	*scraper.Base
}

func New(cfg scraper.Config, deps scraper.Deps) *Scraper {
	return &Scraper{Base: scraper.NewBase(cfg, deps)}
}

func (s *Scraper) Source() models.Source { return models.SourceProperty24 }

// Scrape walks /to-rent/{location}/p{N}.
func (s *Scraper) Scrape(ctx context.Context, city, suburb string) (*models.ScraperResult, error) {
	start := time.Now()
	if city == "" {
		city = "cape-town"
	}
	location := slug(city)
	if suburb != "" {
		location = slug(suburb) + "/" + location
	}
	search := strings.TrimRight(s.Config().SearchURL, "/")

	res := s.Paginate(ctx, func(page int) string {
		return fmt.Sprintf("%s/%s/p%d", search, location, page)
	}, s.ScrapeListingPage)
	res.Duration = time.Since(start)
	return res, nil
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
