package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"rental-scraper/models"
)

// PriceRange is the typical monthly rent band for an area, in ZAR.
type PriceRange struct {
	Min float64
	Max float64
}

// DefaultAreaPrices covers Cape Town suburbs; "default" applies elsewhere.
var DefaultAreaPrices = map[string]PriceRange{
	"cape town cbd": {8000, 25000},
	"sea point":     {10000, 35000},
	"green point":   {10000, 30000},
	"camps bay":     {15000, 60000},
	"clifton":       {20000, 100000},
	"observatory":   {6000, 15000},
	"woodstock":     {7000, 18000},
	"salt river":    {5000, 12000},
	"rondebosch":    {8000, 20000},
	"claremont":     {9000, 22000},
	"kenilworth":    {8000, 18000},
	"newlands":      {10000, 25000},
	"constantia":    {15000, 45000},
	"hout bay":      {10000, 35000},
	"muizenberg":    {6000, 15000},
	"kalk bay":      {8000, 20000},
	"fish hoek":     {6000, 14000},
	"simons town":   {7000, 16000},
	"milnerton":     {8000, 18000},
	"table view":    {7000, 16000},
	"blouberg":      {8000, 20000},
	"bellville":     {5000, 12000},
	"durbanville":   {8000, 18000},
	"stellenbosch":  {6000, 20000},
	"default":       {5000, 30000},
}

// ScamKeywords are phrases associated with rental fraud.
var ScamKeywords = []string{
	"send deposit",
	"western union",
	"moneygram",
	"wire transfer",
	"overseas",
	"abroad",
	"urgently",
	"first come first serve",
	"no viewing",
	"send money",
	"pay before viewing",
	"key collection",
	"landlord abroad",
	"urgent rental",
	"missionary",
	"inheritance",
}

// KnownAgencies is matched by substring against the lower-cased agency name.
var KnownAgencies = []string{
	"pam golding",
	"seeff",
	"rawson",
	"lew geffen",
	"remax",
	"re/max",
	"chas everitt",
	"just property",
	"jawitz",
	"harcourts",
	"engel & völkers",
}

var freeEmailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
}

const (
	bargainThreshold    = 5000
	premiumThreshold    = 10000
	minDescriptionChars = 50
	keywordScore        = 0.25
)

// ScamDetector scores listings for fraud signals. It holds no mutable state
// and is safe for concurrent use.
type ScamDetector struct {
	areas    map[string]PriceRange
	keywords []string
	agencies []string
}

func NewScamDetector() *ScamDetector {
	return &ScamDetector{areas: DefaultAreaPrices, keywords: ScamKeywords, agencies: KnownAgencies}
}

// Analyze sums the contributions of every flag that fires, clamps the total
// to 1 and buckets it into a risk level. Every distinct keyword found adds
// its own contribution.
func (d *ScamDetector) Analyze(l *models.Listing) models.ScamAnalysis {
	var flags []models.ScamFlag
	if f, ok := d.checkPrice(l); ok {
		flags = append(flags, f)
	}
	flags = append(flags, d.checkDescription(l)...)
	flags = append(flags, checkContact(l)...)
	if f, ok := checkImages(l); ok {
		flags = append(flags, f)
	}
	if f, ok := d.checkAgency(l); ok {
		flags = append(flags, f)
	}

	var total float64
	for _, f := range flags {
		total += f.Score
	}
	score := math.Round(math.Min(1, total)*100) / 100
	return models.ScamAnalysis{Score: score, Flags: flags, RiskLevel: models.RiskLevelFor(score)}
}

// MonthlyPrice converts a weekly or daily price to its monthly equivalent.
func MonthlyPrice(l *models.Listing) float64 {
	switch l.PriceFrequency {
	case models.FrequencyWeekly:
		return l.Price * 52 / 12
	case models.FrequencyDaily:
		return l.Price * 30
	}
	return l.Price
}

func (d *ScamDetector) rangeFor(suburb string) PriceRange {
	if r, ok := d.areas[strings.ToLower(strings.TrimSpace(suburb))]; ok {
		return r
	}
	return d.areas["default"]
}

func (d *ScamDetector) checkPrice(l *models.Listing) (models.ScamFlag, bool) {
	r := d.rangeFor(l.Suburb)
	price := MonthlyPrice(l)
	switch {
	case price < r.Min*0.4:
		return models.ScamFlag{
			Type:        "suspicious_price",
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("Price is unusually low for %s. Market average starts at R%s.", l.Suburb, formatRand(r.Min)),
			Score:       0.35,
		}, true
	case price < r.Min*0.6:
		return models.ScamFlag{
			Type:        "low_price",
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("Price is below average for %s. Verify listing authenticity.", l.Suburb),
			Score:       0.15,
		}, true
	}
	return models.ScamFlag{}, false
}

func (d *ScamDetector) checkDescription(l *models.Listing) []models.ScamFlag {
	var flags []models.ScamFlag
	description := strings.ToLower(models.Deref(l.Description))
	text := strings.ToLower(l.Title) + " " + description

	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			flags = append(flags, models.ScamFlag{
				Type:        "suspicious_keyword",
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("Contains suspicious phrase: %q", kw),
				Score:       keywordScore,
			})
		}
	}

	price := MonthlyPrice(l)
	if strings.Contains(text, "all bills included") && price < bargainThreshold {
		flags = append(flags, models.ScamFlag{
			Type:        "unrealistic_offer",
			Severity:    models.SeverityMedium,
			Description: "Claims all bills included at an unusually low price",
			Score:       0.15,
		})
	}
	if len([]rune(description)) < minDescriptionChars && price > premiumThreshold {
		flags = append(flags, models.ScamFlag{
			Type:        "vague_description",
			Severity:    models.SeverityLow,
			Description: "Description is unusually short for this price range",
			Score:       0.1,
		})
	}
	return flags
}

func checkContact(l *models.Listing) []models.ScamFlag {
	var flags []models.ScamFlag
	if l.ContactName == nil && l.ContactPhone == nil && l.ContactEmail == nil {
		flags = append(flags, models.ScamFlag{
			Type:        "missing_contact",
			Severity:    models.SeverityMedium,
			Description: "No contact information provided",
			Score:       0.2,
		})
	}
	if l.ContactPhone != nil && IsInternationalPhone(*l.ContactPhone) {
		flags = append(flags, models.ScamFlag{
			Type:        "international_phone",
			Severity:    models.SeverityMedium,
			Description: "Contact number appears to be from outside South Africa",
			Score:       0.2,
		})
	}
	if l.ContactEmail != nil && l.AgencyName != nil {
		if _, domain, ok := strings.Cut(strings.ToLower(*l.ContactEmail), "@"); ok && freeEmailDomains[domain] {
			flags = append(flags, models.ScamFlag{
				Type:        "personal_email",
				Severity:    models.SeverityLow,
				Description: "Agent using personal email despite claiming agency affiliation",
				Score:       0.1,
			})
		}
	}
	return flags
}

// IsInternationalPhone reports numbers dialled with a non-South-African
// country code, in either +CC or 00CC form.
func IsInternationalPhone(phone string) bool {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)
	switch {
	case strings.HasPrefix(p, "+"):
		return !strings.HasPrefix(p, "+27")
	case strings.HasPrefix(p, "00"):
		return !strings.HasPrefix(p, "0027")
	}
	return false
}

func checkImages(l *models.Listing) (models.ScamFlag, bool) {
	switch len(l.Images) {
	case 0:
		return models.ScamFlag{Type: "no_images", Severity: models.SeverityMedium, Description: "No photos provided", Score: 0.15}, true
	case 1:
		return models.ScamFlag{Type: "few_images", Severity: models.SeverityLow, Description: "Only one photo provided", Score: 0.05}, true
	}
	return models.ScamFlag{}, false
}

func (d *ScamDetector) checkAgency(l *models.Listing) (models.ScamFlag, bool) {
	if l.AgencyName == nil {
		return models.ScamFlag{}, false
	}
	name := strings.ToLower(*l.AgencyName)
	for _, known := range d.agencies {
		if strings.Contains(name, known) {
			return models.ScamFlag{}, false
		}
	}
	return models.ScamFlag{
		Type:        "unknown_agency",
		Severity:    models.SeverityLow,
		Description: "Agency not in our verified list. Not necessarily a scam, but verify independently.",
		Score:       0.05,
	}, true
}

// formatRand renders 8000 as "8 000".
func formatRand(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
