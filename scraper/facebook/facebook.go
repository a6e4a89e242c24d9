// Package facebook scrapes property rentals from Facebook Marketplace.
//
// Marketplace renders client side, so listings are read from the JSON blobs
// embedded in script tags. Most pages need a logged in session; pass the
// session cookies through Config.Cookies.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/scraper/extract"
)

const (
	BaseURL   = "https://www.facebook.com"
	SearchURL = BaseURL + "/marketplace"

	// AuthMessage is appended to the run errors when Facebook refuses access.
	AuthMessage = "Facebook authentication required. Please provide session cookies."

	jsonSearchDepth = 10
)

func DefaultConfig() scraper.Config {
	return scraper.Config{
		Source:          models.SourceFacebook,
		BaseURL:         BaseURL,
		SearchURL:       SearchURL,
		RateLimit:       1,
		DelayMultiplier: 2,
		MaxPages:        5,
		UserAgents:      scraper.DefaultUserAgents,
		AuthTerminal:    true,
		AuthMessage:     AuthMessage,
	}
}

var rules = scraper.ParseRules{
	DetailLink:      regexp.MustCompile(`^(?:https?://[^/]*facebook\.com)?/marketplace/item/\d+/?`),
	ImageExclude:    []string{"placeholder", "logo"},
	DefaultCity:     "Unknown",
	DefaultProvince: "Unknown",
}

var (
	itemID    = regexp.MustCompile(`/marketplace/item/(\d+)`)
	loginWall = regexp.MustCompile(`id="login_form"|/login/\?next=|action="/login/`)

	listingKeys = []string{"marketplace_listing", "listing", "item"}
	detailKeys  = []string{"marketplace_listing", "listing", "item", "product"}
)

type Scraper struct {
	*scraper.Base
}

func New(cfg scraper.Config, deps scraper.Deps) *Scraper {
	return &Scraper{Base: scraper.NewBase(cfg, deps)}
}

func (s *Scraper) Source() models.Source { return models.SourceFacebook }

func (s *Scraper) Scrape(ctx context.Context, city, suburb string) (*models.ScraperResult, error) {
	start := time.Now()
	if s.Config().Cookies == "" {
		s.Logger().Warn("%s no session cookies configured, most listings will be hidden", s.Tag())
	}

	query := city
	if suburb != "" {
		query = suburb + ", " + city
	}
	res := s.Paginate(ctx, func(page int) string {
		return s.searchURL(query, page)
	}, s.ScrapeListingPage)
	res.Duration = time.Since(start)
	return res, nil
}

func (s *Scraper) searchURL(query string, page int) string {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	q.Set("category", "propertyrentals")
	q.Set("vertical", "property")
	u := strings.TrimRight(s.Config().SearchURL, "/") + "/search?" + q.Encode()
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// ScrapeListingPage reads listings from the page's embedded JSON. When none
// are found it follows /marketplace/item/ links instead.
func (s *Scraper) ScrapeListingPage(ctx context.Context, u string) ([]*models.Listing, error) {
	body, err := s.Fetch(ctx, u, "")
	if err != nil {
		return nil, err
	}
	if loginWall.MatchString(body) {
		return nil, scraper.ErrAuthRequired
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}

	var out []*models.Listing
	seen := make(map[string]struct{})
	for _, blob := range jsonBlobs(doc) {
		for _, raw := range findListings(blob, 0) {
			l := s.listingFromJSON(raw, "", "")
			if l == nil {
				continue
			}
			if _, dup := seen[l.ExternalID]; dup {
				continue
			}
			seen[l.ExternalID] = struct{}{}
			out = append(out, l)
		}
	}
	if len(out) > 0 {
		s.Logger().Info("%s %d listings from embedded json", s.Tag(), len(out))
		return out, nil
	}

	return s.FetchDetails(ctx, s.HarvestLinks(doc, rules), s.ScrapePropertyDetail), nil
}

// ScrapePropertyDetail prefers the embedded listing JSON and falls back to
// the shared HTML detail parser.
func (s *Scraper) ScrapePropertyDetail(ctx context.Context, u string) (*models.Listing, error) {
	body, err := s.Fetch(ctx, u, s.Config().SearchURL)
	if err != nil {
		return nil, err
	}
	if loginWall.MatchString(body) {
		return nil, scraper.ErrAuthRequired
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}

	id := ""
	if m := itemID.FindStringSubmatch(u); m != nil {
		id = m[1]
	}
	for _, blob := range jsonBlobs(doc) {
		data := findListingObject(blob, 0)
		if data == nil {
			continue
		}
		if l := s.listingFromJSON(data, u, id); l != nil {
			return l, nil
		}
	}
	return s.ParseDetail(body, u, rules)
}

func jsonBlobs(doc *goquery.Document) []any {
	var out []any
	doc.Find(`script[type="application/json"]`).Each(func(_ int, sel *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(sel.Text()), &v); err == nil {
			out = append(out, v)
		}
	})
	return out
}

// findListings collects every object that looks like a marketplace listing,
// descending at most jsonSearchDepth levels.
func findListings(v any, depth int) []map[string]any {
	if depth > jsonSearchDepth {
		return nil
	}
	var out []map[string]any
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			out = append(out, findListings(item, depth+1)...)
		}
	case map[string]any:
		if obj := extract.ObjectField(node, listingKeys...); obj != nil {
			out = append(out, obj)
		}
		if arr, ok := node["listings"].([]any); ok {
			for _, item := range arr {
				if obj, ok := item.(map[string]any); ok {
					out = append(out, obj)
				}
			}
		}
		for _, k := range extract.SortedKeys(node) {
			out = append(out, findListings(node[k], depth+1)...)
		}
	}
	return out
}

func findListingObject(v any, depth int) map[string]any {
	if depth > jsonSearchDepth {
		return nil
	}
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if obj := findListingObject(item, depth+1); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if obj := extract.ObjectField(node, detailKeys...); obj != nil {
			return obj
		}
		for _, k := range extract.SortedKeys(node) {
			if obj := findListingObject(node[k], depth+1); obj != nil {
				return obj
			}
		}
	}
	return nil
}

// listingFromJSON maps one marketplace listing object. It returns nil when
// the price cannot be resolved or the listing cannot be identified.
func (s *Scraper) listingFromJSON(data map[string]any, pageURL, externalID string) *models.Listing {
	price, ok := jsonPrice(data)
	if !ok {
		return nil
	}

	if externalID == "" {
		externalID = extract.IDField(data, "id", "listing_id")
	}
	link := pageURL
	if link == "" {
		link = extract.StringField(data, "url", "permalink", "share_uri")
	}
	if link == "" && externalID != "" {
		link = strings.TrimRight(s.Config().BaseURL, "/") + "/marketplace/item/" + externalID + "/"
	}
	if link == "" {
		return nil
	}
	link = s.Resolve(link)
	if externalID == "" {
		externalID = extract.ExternalIDFromURL(link)
	}

	title := extract.StringField(data, "title", "name", "headline", "marketplace_listing_title")
	description := extract.StringField(data, "description", "details", "redacted_description")
	text := title + " " + description

	loc := extract.ObjectField(data, "location", "place")
	if loc == nil {
		loc = map[string]any{}
	}
	lat, latOK := extract.NumberField(loc, "latitude")
	if !latOK {
		lat, latOK = extract.NumberField(data, "latitude")
	}
	lng, lngOK := extract.NumberField(loc, "longitude")
	if !lngOK {
		lng, lngOK = extract.NumberField(data, "longitude")
	}

	seller := extract.ObjectField(data, "seller", "owner")
	if seller == nil {
		seller = map[string]any{}
	}

	l := &models.Listing{
		ExternalID:     externalID,
		Source:         models.SourceFacebook,
		SourceURL:      link,
		Title:          title,
		Description:    models.Str(description),
		Price:          price,
		PriceFrequency: extract.DetectFrequency(extract.StringField(data, "priceText", "formattedPrice") + " " + description),
		Address:        models.Str(extract.StringField(loc, "address", "full_address")),
		Suburb:         extract.StringField(loc, "suburb", "neighborhood", "city"),
		City:           extract.StringField(loc, "city", "metro"),
		Province:       extract.StringField(loc, "province", "state"),
		PropertyType:   extract.NormalizePropertyType(text),
		Bedrooms:       roomCount(data, "bedrooms", "bedroomsText", extract.BedroomsPattern, text),
		Bathrooms:      roomCount(data, "bathrooms", "bathroomsText", extract.BathroomsPattern, text),
		ParkingSpaces:  roomCount(data, "parking", "parkingText", extract.ParkingPattern, text),
		Furnished:      extract.IsFurnished(text),
		PetFriendly:    extract.IsPetFriendly(text),
		Images:         extract.NormalizeImages(jsonImages(data), s.BaseURL(), extract.ImageOptions{Exclude: rules.ImageExclude, Limit: scraper.DetailImageLimit}),
		ContactName:    models.Str(extract.StringField(seller, "name")),
		ContactPhone:   models.Str(extract.StringField(seller, "phone")),
		ContactEmail:   models.Str(extract.StringField(seller, "email")),
		ScrapedAt:      time.Now(),
	}
	if latOK && lngOK {
		l.Latitude, l.Longitude = &lat, &lng
	}
	if l.Address != nil {
		l.PostalCode = models.Str(extract.ExtractPostalCode(*l.Address))
	}
	s.ApplyDefaults(l, rules)
	return l
}

// jsonPrice accepts price values as numbers, text ("R12,000") or objects
// such as {"amount": "12000", "formatted_amount": "R12,000"}.
func jsonPrice(data map[string]any) (float64, bool) {
	for _, k := range []string{"price", "priceText", "formattedPrice", "listing_price"} {
		v, ok := data[k]
		if !ok {
			continue
		}
		if p, ok := extract.PriceValue(v); ok {
			return p, true
		}
		if obj, ok := v.(map[string]any); ok {
			if p, ok := extract.FindPriceInJSON(obj, 0); ok {
				return p, true
			}
			if p, ok := extract.ParsePrice(extract.StringField(obj, "formatted_amount", "text")); ok {
				return p, true
			}
		}
	}
	return 0, false
}

func roomCount(data map[string]any, numKey, textKey string, re *regexp.Regexp, text string) int {
	if n, ok := extract.NumberField(data, numKey); ok && n > 0 {
		return int(n)
	}
	if n := extract.ParseRooms(extract.StringField(data, textKey)); n > 0 {
		return n
	}
	return extract.CountRooms(re, text)
}

func jsonImages(data map[string]any) []string {
	var raw []string
	if arr, ok := data["images"].([]any); ok {
		for _, img := range arr {
			switch x := img.(type) {
			case string:
				raw = append(raw, x)
			case map[string]any:
				raw = append(raw, extract.StringField(x, "url", "src", "uri"))
			}
		}
		return raw
	}
	switch x := data["image"].(type) {
	case string:
		raw = append(raw, x)
	case map[string]any:
		raw = append(raw, extract.StringField(x, "url", "src", "uri"))
	}
	return raw
}
