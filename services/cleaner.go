package services

import (
	"math"
	"strings"
	"unicode"

	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/utils"
)

// Cleaner normalises scraped listings and drops the ones that cannot be
// stored.
type Cleaner struct {
	logger *utils.Logger
}

func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops listings without a positive finite price, an external id or a
// source URL, and strict duplicates by (source, external_id). The first
// occurrence wins.
func (c *Cleaner) Clean(raw []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{}, len(raw))
	result := make([]*models.Listing, 0, len(raw))

	for _, l := range raw {
		if l == nil {
			continue
		}
		if !validPrice(l.Price) {
			c.logger.Debug("[cleaner] dropping %s: price %v", l.SourceURL, l.Price)
			continue
		}
		l.ExternalID = strings.TrimSpace(l.ExternalID)
		l.SourceURL = strings.TrimSpace(l.SourceURL)
		if l.ExternalID == "" || l.SourceURL == "" {
			c.logger.Warn("[cleaner] dropping listing without identity: %q", l.Title)
			continue
		}

		key := l.Key()
		if _, dup := seen[key]; dup {
			c.logger.Debug("[cleaner] duplicate %s skipped", key)
			continue
		}
		seen[key] = struct{}{}

		normalise(l)
		result = append(result, l)
	}

	c.logger.Info("[cleaner] cleaned %d -> %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func normalise(l *models.Listing) {
	l.Title = normaliseText(l.Title)
	l.Suburb = normaliseText(l.Suburb)
	l.City = normaliseText(l.City)
	l.Province = normaliseText(l.Province)
	l.Description = normalisePtr(l.Description)
	l.Address = normalisePtr(l.Address)
	l.ContactName = normalisePtr(l.ContactName)
	l.AgencyName = normalisePtr(l.AgencyName)

	l.Bedrooms = max(l.Bedrooms, 0)
	l.Bathrooms = max(l.Bathrooms, 0)
	l.ParkingSpaces = max(l.ParkingSpaces, 0)
	if l.Deposit != nil && !validPrice(*l.Deposit) {
		l.Deposit = nil
	}
	if l.SizeSqm != nil && !validPrice(*l.SizeSqm) {
		l.SizeSqm = nil
	}

	l.Images = dedupImages(l.Images, scraper.DetailImageLimit)
}

func dedupImages(images []string, limit int) []string {
	seen := make(map[string]struct{}, len(images))
	out := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if _, dup := seen[img]; dup {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
		if len(out) == limit {
			break
		}
	}
	return out
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func normalisePtr(s *string) *string {
	if s == nil {
		return nil
	}
	return models.Str(normaliseText(*s))
}
