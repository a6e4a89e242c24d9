package extract

import (
	"regexp"
	"strconv"
	"strings"

	"rental-scraper/models"
)

var (
	firstNumber = regexp.MustCompile(`\d+`)

	BedroomsPattern      = regexp.MustCompile(`(?i)(\d+)\s*(?:bedrooms?|beds?|br)\b`)
	BathroomsPattern     = regexp.MustCompile(`(?i)(\d+)\s*(?:bathrooms?|baths?|ba)\b`)
	ParkingPattern       = regexp.MustCompile(`(?i)(\d+)\s*(?:parking|cars?)\b`)
	ParkingGaragePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:parking|cars?|garages?)\b`)

	TypeKeywords         = regexp.MustCompile(`(?i)\b(apartment|townhouse|house|studio|bachelor|rooms?|flat)\b`)
	TypeKeywordsExtended = regexp.MustCompile(`(?i)\b(apartment|townhouse|house|studio|bachelor|rooms?|flat|penthouse)\b`)

	roomWord = regexp.MustCompile(`\brooms?\b`)

	frequencyPattern = regexp.MustCompile(`(?i)per\s*(month|week|day)|(?:^|[^a-z])(p/m|p/w|p/d|pm|pw|pd)\b`)

	depositPattern  = regexp.MustCompile(`(?i)deposit[^:<>]{0,30}:?\s*R\s*` + amount)
	sizePattern     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:m²|sqm|m2)`)
	latitudeRe      = regexp.MustCompile(`"latitude"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
	longitudeRe     = regexp.MustCompile(`"longitude"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
	phonePattern    = regexp.MustCompile(`(\+?\d{2,3}[\s-]?\d{2,4}[\s-]?\d{3,4}[\s-]?\d{3,4})`)
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	postalPattern   = regexp.MustCompile(`\b(\d{4})\b\s*$`)
	toRentSlug      = regexp.MustCompile(`/to-rent/([^/?#]+)`)
	streetAddressRe = regexp.MustCompile(`\d+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Road|Street|Avenue|Drive|Lane|Way|Crescent|Close|Rd|St|Ave)\b`)

	properWords  = `([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`
	locationPair = regexp.MustCompile(properWords + `\s*,\s*` + properWords)
	locationTrio = regexp.MustCompile(properWords + `\s*,\s*` + properWords + `\s*,\s*` + properWords)
)

// ParseRooms returns the first integer in text, or 0.
func ParseRooms(text string) int {
	m := firstNumber.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// CountRooms applies one of the room patterns to text; 0 when absent.
func CountRooms(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NormalizePropertyType maps free text onto the PropertyType enum.
// "townhouse" is checked before "house".
func NormalizePropertyType(s string) models.PropertyType {
	t := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(t, "townhouse"):
		return models.PropertyTownhouse
	case strings.Contains(t, "apartment"), strings.Contains(t, "flat"), strings.Contains(t, "penthouse"):
		return models.PropertyApartment
	case strings.Contains(t, "house"):
		return models.PropertyHouse
	case strings.Contains(t, "studio"), strings.Contains(t, "bachelor"):
		return models.PropertyStudio
	case roomWord.MatchString(t):
		return models.PropertyRoom
	}
	return models.PropertyOther
}

// PropertyTypeFrom classifies the first type keyword found in text, falling
// back to the title.
func PropertyTypeFrom(keywords *regexp.Regexp, text, title string) models.PropertyType {
	if m := keywords.FindString(text); m != "" {
		return NormalizePropertyType(m)
	}
	return NormalizePropertyType(title)
}

func IsFurnished(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "furnished") && !strings.Contains(t, "unfurnished")
}

func IsPetFriendly(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "pet friendly") ||
		strings.Contains(t, "pet-friendly") ||
		strings.Contains(t, "pets allowed") ||
		strings.Contains(t, "pets ok")
}

// DetectFrequency reads a "per month" / "pw" style suffix. Monthly is the
// default.
func DetectFrequency(text string) models.PriceFrequency {
	m := frequencyPattern.FindStringSubmatch(text)
	if m == nil {
		return models.FrequencyMonthly
	}
	word := strings.ToLower(m[1])
	if word == "" {
		word = strings.ToLower(strings.ReplaceAll(m[2], "/", ""))
	}
	switch word {
	case "week", "pw":
		return models.FrequencyWeekly
	case "day", "pd":
		return models.FrequencyDaily
	}
	return models.FrequencyMonthly
}

func ExtractDeposit(text string) *float64 {
	for _, m := range amountMatches(depositPattern, text) {
		if v, ok := ParsePrice(m); ok {
			return &v
		}
	}
	return nil
}

func ExtractSize(text string) *float64 {
	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// ExtractCoordinates reads "latitude"/"longitude" keys from embedded data.
// Zero is treated as absent.
func ExtractCoordinates(text string) (lat, lng *float64) {
	parse := func(re *regexp.Regexp) *float64 {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return nil
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v == 0 {
			return nil
		}
		return &v
	}
	return parse(latitudeRe), parse(longitudeRe)
}

// ExtractPhone returns the first phone-like number with whitespace collapsed.
func ExtractPhone(text string) string {
	m := phonePattern.FindString(text)
	return strings.Join(strings.Fields(m), " ")
}

func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPostalCode reads a trailing four digit code from an address.
func ExtractPostalCode(address string) string {
	m := postalPattern.FindStringSubmatch(strings.TrimSpace(address))
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractStreetAddress finds a "12 Main Road" style address in plain text.
func ExtractStreetAddress(text string) string {
	return streetAddressRe.FindString(text)
}

// SplitLocation reads "Suburb, City[, Province]" from text. Missing parts
// are returned empty.
func SplitLocation(text string) (suburb, city, province string) {
	if m := locationTrio.FindStringSubmatch(text); m != nil {
		return m[1], m[2], m[3]
	}
	if m := locationPair.FindStringSubmatch(text); m != nil {
		return m[1], m[2], ""
	}
	return "", "", ""
}

// SuburbFromAddress picks the second to last comma separated part.
func SuburbFromAddress(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-2])
}

// CityFromURL turns the slug after /to-rent/ into a title cased name:
// "/to-rent/cape-town/..." gives "Cape Town".
func CityFromURL(u string) string {
	m := toRentSlug.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return TitleSlug(m[1])
}

// TitleSlug converts "sea-point" to "Sea Point".
func TitleSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ExternalIDFromURL prefers the last all-digit path segment and falls back
// to the last non-empty segment.
func ExternalIDFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	segments := strings.Split(strings.TrimRight(u, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return segments[i]
		}
	}
	return segments[len(segments)-1]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
