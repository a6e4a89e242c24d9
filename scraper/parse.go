package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
	"rental-scraper/scraper/extract"
)

const (
	CardImageLimit   = 10
	DetailImageLimit = 20
)

// ParseRules captures what differs between HTML sources when reading cards
// and detail pages.
type ParseRules struct {
	// Containers are listing card selectors in priority order.
	Containers []string
	// DetailLink matches hrefs that point at a single listing.
	DetailLink *regexp.Regexp
	// SkipLink excludes otherwise matching hrefs (pagination and the like).
	SkipLink *regexp.Regexp

	TypeKeywords         *regexp.Regexp
	ParkingPattern       *regexp.Regexp
	DescriptionSelectors []string
	ImageExclude         []string

	DefaultCity     string
	DefaultProvince string
}

func (r ParseRules) withDefaults() ParseRules {
	if r.TypeKeywords == nil {
		r.TypeKeywords = extract.TypeKeywords
	}
	if r.ParkingPattern == nil {
		r.ParkingPattern = extract.ParkingPattern
	}
	if len(r.DescriptionSelectors) == 0 {
		r.DescriptionSelectors = []string{"div[class*=description]", "section[class*=description]", "p[class*=description]"}
	}
	return r
}

// Containers returns the matches of the first selector that matches
// anything, keeping only the outermost elements.
func Containers(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		outer := found.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(sel).Length() == 0
		})
		if outer.Length() > 0 {
			return outer
		}
	}
	return nil
}

// HarvestLinks collects detail links in first-seen order, resolved against
// the source's base URL.
func (b *Base) HarvestLinks(doc *goquery.Document, rules ParseRules) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !b.acceptLink(href, rules) {
			return
		}
		abs := b.Resolve(href)
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

func (b *Base) acceptLink(href string, rules ParseRules) bool {
	if href == "" || rules.DetailLink == nil || !rules.DetailLink.MatchString(href) {
		return false
	}
	return rules.SkipLink == nil || !rules.SkipLink.MatchString(href)
}

// CardParser turns one listing container into a listing; nil means skip.
type CardParser func(card *goquery.Selection, pageURL string) (*models.Listing, error)

// DetailScraper fetches and parses one detail page.
type DetailScraper func(ctx context.Context, url string) (*models.Listing, error)

// ScrapeListingPage fetches pageURL, parses structured containers and, when
// none match, falls back to fetching every harvested detail link.
func (b *Base) ScrapeListingPage(ctx context.Context, pageURL string, rules ParseRules,
	card CardParser, detail DetailScraper) ([]*models.Listing, error) {

	body, err := b.Fetch(ctx, pageURL, "")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	cards := Containers(doc, rules.Containers)
	if cards == nil {
		b.logger.Info("%s no structured listings on %s, following detail links", b.tag, pageURL)
		return b.FetchDetails(ctx, b.HarvestLinks(doc, rules), detail), nil
	}

	var out []*models.Listing
	cards.Each(func(i int, s *goquery.Selection) {
		l, err := safeParse(card, s, pageURL)
		if err != nil {
			b.logger.Debug("%s card %d on %s skipped: %v", b.tag, i, pageURL, err)
			return
		}
		if l != nil {
			out = append(out, l)
		}
	})
	b.logger.Info("%s parsed %d listings from %d cards", b.tag, len(out), cards.Length())
	return out, nil
}

func safeParse(card CardParser, s *goquery.Selection, pageURL string) (l *models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return card(s, pageURL)
}

// ParseCard reads a listing card. It returns nil when the card has no
// detail link or no resolvable price.
func (b *Base) ParseCard(card *goquery.Selection, pageURL string, rules ParseRules) (*models.Listing, error) {
	rules = rules.withDefaults()
	var link string
	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if b.acceptLink(href, rules) {
			link = b.Resolve(href)
			return false
		}
		return true
	})
	if link == "" {
		return nil, nil
	}

	html, err := goquery.OuterHtml(card)
	if err != nil {
		return nil, err
	}
	price, ok := extract.ExtractPrice(html)
	if !ok {
		return nil, nil
	}

	text := extract.SelectionText(card)
	title := extract.FirstText(card, "h2", "h3", "[class*=title]", "a")

	suburb, city := "", ""
	if loc := extract.FirstText(card, "[class*=location]", "[class*=suburb]", "[class*=address]"); loc != "" {
		suburb, city, _ = extract.SplitLocation(loc)
		if suburb == "" && !strings.Contains(loc, ",") {
			suburb = loc
		}
	}
	if suburb == "" {
		suburb, city, _ = extract.SplitLocation(text)
	}
	if city == "" {
		city = extract.CityFromURL(pageURL)
	}

	description := extract.FirstText(card, "[class*=description]", "p")

	l := &models.Listing{
		ExternalID:     extract.ExternalIDFromURL(link),
		Source:         b.cfg.Source,
		SourceURL:      link,
		Title:          title,
		Description:    models.Str(description),
		Price:          price,
		PriceFrequency: extract.DetectFrequency(text),
		Suburb:         suburb,
		City:           city,
		PropertyType:   extract.PropertyTypeFrom(rules.TypeKeywords, text, title),
		Bedrooms:       extract.CountRooms(extract.BedroomsPattern, text),
		Bathrooms:      extract.CountRooms(extract.BathroomsPattern, text),
		ParkingSpaces:  extract.CountRooms(rules.ParkingPattern, text),
		Furnished:      extract.IsFurnished(text),
		PetFriendly:    extract.IsPetFriendly(text),
		Images:         extract.ExtractImages(card, b.base, extract.ImageOptions{Exclude: rules.ImageExclude, Limit: CardImageLimit}),
		ScrapedAt:      time.Now(),
	}
	b.ApplyDefaults(l, rules)
	return l, nil
}

// ParseDetail reads a full listing page. It returns nil when no price can
// be resolved.
func (b *Base) ParseDetail(body, pageURL string, rules ParseRules) (*models.Listing, error) {
	rules = rules.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	price, ok := extract.ExtractPrice(body)
	if !ok {
		b.logger.Debug("%s no price on %s, discarding", b.tag, pageURL)
		return nil, nil
	}

	page := VisibleText(doc)
	title := extract.FirstText(doc.Selection, "h1", "title")

	address := extract.FirstText(doc.Selection, "address", "[class*=address]")
	if address == "" {
		address = extract.ExtractStreetAddress(page)
	}
	locText := extract.FirstText(doc.Selection, "[class*=location]", "[class*=suburb]", "[class*=breadcrumb]")
	suburb, city, province := extract.SplitLocation(locText)
	if suburb == "" {
		suburb, city, province = extract.SplitLocation(address)
	}
	if suburb == "" {
		suburb = extract.SuburbFromAddress(address)
	}
	if city == "" {
		city = extract.CityFromURL(pageURL)
	}

	description := extract.FirstText(doc.Selection, rules.DescriptionSelectors...)
	if description == "" {
		doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if t := extract.SelectionText(p); len(t) >= 50 {
				description = t
				return false
			}
			return true
		})
	}

	contact := extract.FirstText(doc.Selection, "[class*=contact]", "[class*=agent]")
	phone := linkTarget(doc, "tel:")
	if phone == "" {
		phone = extract.ExtractPhone(contact)
	}
	email := linkTarget(doc, "mailto:")
	if email == "" {
		email = extract.ExtractEmail(page)
	}
	lat, lng := extract.ExtractCoordinates(body)

	l := &models.Listing{
		ExternalID:     extract.ExternalIDFromURL(pageURL),
		Source:         b.cfg.Source,
		SourceURL:      pageURL,
		Title:          title,
		Description:    models.Str(description),
		Price:          price,
		PriceFrequency: extract.DetectFrequency(page),
		Deposit:        extract.ExtractDeposit(page),
		Address:        models.Str(address),
		Suburb:         suburb,
		City:           city,
		Province:       province,
		PostalCode:     models.Str(extract.ExtractPostalCode(address)),
		Latitude:       lat,
		Longitude:      lng,
		PropertyType:   extract.PropertyTypeFrom(rules.TypeKeywords, page, title),
		Bedrooms:       extract.CountRooms(extract.BedroomsPattern, page),
		Bathrooms:      extract.CountRooms(extract.BathroomsPattern, page),
		ParkingSpaces:  extract.CountRooms(rules.ParkingPattern, page),
		SizeSqm:        extract.ExtractSize(page),
		Furnished:      extract.IsFurnished(page),
		PetFriendly:    extract.IsPetFriendly(page),
		Images:         extract.ExtractImages(doc.Selection, b.base, extract.ImageOptions{Exclude: rules.ImageExclude, Limit: DetailImageLimit}),
		ContactName:    models.Str(extract.FirstText(doc.Selection, "[class*=agent-name]", "[class*=agent] h3", "[class*=agent] h4", "[class*=agent] strong")),
		ContactPhone:   models.Str(phone),
		ContactEmail:   models.Str(email),
		AgencyName:     models.Str(extract.FirstText(doc.Selection, "[class*=agency-name]", "[class*=agency] h3", "[class*=agency] h4", "[class*=agency] strong")),
		ScrapedAt:      time.Now(),
	}
	b.ApplyDefaults(l, rules)
	return l, nil
}

func (b *Base) ApplyDefaults(l *models.Listing, rules ParseRules) {
	if l.ExternalID == "" {
		l.ExternalID = l.SourceURL
	}
	if l.Title == "" {
		l.Title = "Property Listing"
	}
	if l.Suburb == "" {
		l.Suburb = "Unknown"
	}
	if l.City == "" {
		l.City = rules.DefaultCity
	}
	if l.Province == "" {
		l.Province = rules.DefaultProvince
	}
	if l.PropertyType == "" {
		l.PropertyType = models.PropertyOther
	}
	if l.PriceFrequency == "" {
		l.PriceFrequency = models.FrequencyMonthly
	}
}

// VisibleText is the document's body text without script and style content.
func VisibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return extract.SelectionText(body)
}

func linkTarget(doc *goquery.Document, scheme string) string {
	var out string
	doc.Find(`a[href^="` + scheme + `"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		out = strings.TrimSpace(strings.TrimPrefix(href, scheme))
		if i := strings.IndexByte(out, '?'); i >= 0 {
			out = out[:i]
		}
		return out == ""
	})
	return out
}
