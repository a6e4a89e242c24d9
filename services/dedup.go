package services

import (
	"strconv"
	"strings"

	"rental-scraper/models"
)

const fuzzyTitleRunes = 50

// FuzzyKey identifies the same property advertised on several sources:
// suburb, title prefix and price, case-insensitive.
func FuzzyKey(l *models.Listing) string {
	title := []rune(strings.ToLower(l.Title))
	if len(title) > fuzzyTitleRunes {
		title = title[:fuzzyTitleRunes]
	}
	return strings.ToLower(l.Suburb) + "-" + string(title) + "-" + strconv.FormatFloat(l.Price, 'f', -1, 64)
}

// DeduplicateListings keeps the first listing seen for each fuzzy key.
// Applying it twice gives the same result as applying it once.
func DeduplicateListings(listings []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		key := FuzzyKey(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
