package models

import (
	"strings"
	"time"
)

// Source identifies the website a listing was scraped from.
type Source string

const (
	SourcePrivateProperty Source = "private_property"
	SourceProperty24      Source = "property24"
	SourceFacebook        Source = "facebook"
)

// AllSources lists every supported source in default run order.
var AllSources = []Source{SourcePrivateProperty, SourceProperty24, SourceFacebook}

// ParseSource maps a source id to a Source. Unknown ids return false.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourcePrivateProperty:
		return SourcePrivateProperty, true
	case SourceProperty24:
		return SourceProperty24, true
	case SourceFacebook:
		return SourceFacebook, true
	}
	return "", false
}

type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyTownhouse PropertyType = "townhouse"
	PropertyStudio    PropertyType = "studio"
	PropertyRoom      PropertyType = "room"
	PropertyOther     PropertyType = "other"
)

type PriceFrequency string

const (
	FrequencyMonthly PriceFrequency = "monthly"
	FrequencyWeekly  PriceFrequency = "weekly"
	FrequencyDaily   PriceFrequency = "daily"
)

// Listing is a single normalised rental listing produced by a source scraper.
// Optional fields are nil when the source page did not expose them.
//
// A Listing with Price <= 0 is never constructed by a scraper.
type Listing struct {
	ExternalID string
	Source     Source
	SourceURL  string

	Title       string
	Description *string

	Price          float64
	PriceFrequency PriceFrequency
	Deposit        *float64

	Address    *string
	Suburb     string
	City       string
	Province   string
	PostalCode *string
	Latitude   *float64
	Longitude  *float64

	PropertyType  PropertyType
	Bedrooms      int
	Bathrooms     int
	ParkingSpaces int
	SizeSqm       *float64
	Furnished     bool
	PetFriendly   bool

	Images []string

	ContactName  *string
	ContactPhone *string
	ContactEmail *string
	AgencyName   *string

	ScrapedAt time.Time
}

// Key is the strict identity of a listing in storage.
func (l *Listing) Key() string {
	return string(l.Source) + ":" + l.ExternalID
}

// Str returns a pointer to s, or nil when s is blank.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Float returns a pointer to f, or nil when f is not positive.
func Float(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ScraperResult is the outcome of one source run.
type ScraperResult struct {
	Success      bool
	Listings     []*Listing
	Errors       []string
	PagesScraped int
	Duration     time.Duration
}

type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusPending ListingStatus = "pending"
	StatusRented  ListingStatus = "rented"
	StatusExpired ListingStatus = "expired"
)

// StoredListing is a listing as held by the sink, enriched with scam analysis.
type StoredListing struct {
	Listing
	ScamScore   float64
	ScamFlags   []string
	Status      ListingStatus
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// InsightReport summarises a batch of stored listings.
type InsightReport struct {
	TotalListings  int
	BySource       map[Source]int
	AveragePrice   float64
	MedianPrice    float64
	MinPrice       float64
	MaxPrice       float64
	Cheapest       *StoredListing
	MostExpensive  *StoredListing
	BySuburb       map[string]int
	ByRiskLevel    map[RiskLevel]int
	HighRisk       []*StoredListing
	PetFriendly    int
	FurnishedCount int
}
