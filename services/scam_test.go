package services

import (
	"slices"
	"testing"

	"rental-scraper/models"
)

func cleanListing() *models.Listing {
	return &models.Listing{
		Source:         models.SourceProperty24,
		ExternalID:     "1",
		Title:          "Modern 2 bed apartment with sea views",
		Description:    models.Str("Spacious apartment on the Sea Point promenade, secure parking, close to shops and transport."),
		Price:          15000,
		PriceFrequency: models.FrequencyMonthly,
		Suburb:         "Sea Point",
		ContactName:    models.Str("Anele"),
		ContactPhone:   models.Str("021 555 1234"),
		AgencyName:     models.Str("Seeff Atlantic Seaboard"),
		Images:         []string{"a.jpg", "b.jpg", "c.jpg"},
	}
}

func TestScamSafeListing(t *testing.T) {
	a := NewScamDetector().Analyze(cleanListing())
	if a.Score != 0 || a.RiskLevel != models.RiskSafe {
		t.Errorf("Analyze(clean) = %.2f %s, flags %v; want 0 safe", a.Score, a.RiskLevel, a.FlagTypes())
	}
}

func TestScamHighRiskListing(t *testing.T) {
	l := cleanListing()
	l.Price = 3000
	l.Description = models.Str("I am currently overseas so the keys will be couriered once paid.")
	l.Images = nil

	a := NewScamDetector().Analyze(l)
	if a.Score != 0.75 {
		t.Errorf("score = %.2f; want 0.75 (flags %v)", a.Score, a.FlagTypes())
	}
	if a.RiskLevel != models.RiskHigh {
		t.Errorf("risk = %s; want high", a.RiskLevel)
	}
	want := []string{"suspicious_price", "suspicious_keyword", "no_images"}
	if !slices.Equal(a.FlagTypes(), want) {
		t.Errorf("flags = %v; want %v", a.FlagTypes(), want)
	}
}

func TestScamFlags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Listing)
		want   []string
		score  float64
	}{
		{"low price band", func(l *models.Listing) { l.Price = 5000 }, []string{"low_price"}, 0.15},
		{"weekly price is normalised", func(l *models.Listing) {
			l.Price = 2000
			l.PriceFrequency = models.FrequencyWeekly
		}, nil, 0},
		{"keywords add up", func(l *models.Listing) {
			l.Description = models.Str("Landlord abroad, please use western union for the deposit. Lovely flat.")
		}, []string{"suspicious_keyword", "suspicious_keyword", "suspicious_keyword"}, 0.75},
		{"cheap bills included", func(l *models.Listing) {
			l.Suburb = "Bellville"
			l.Price = 4500
			l.Description = models.Str("Cosy garden cottage with all bills included, walking distance to the station.")
		}, []string{"unrealistic_offer"}, 0.15},
		{"vague description", func(l *models.Listing) { l.Description = models.Str("Nice flat") }, []string{"vague_description"}, 0.1},
		{"missing contact", func(l *models.Listing) {
			l.ContactName, l.ContactPhone, l.AgencyName = nil, nil, nil
		}, []string{"missing_contact"}, 0.2},
		{"international phone", func(l *models.Listing) { l.ContactPhone = models.Str("+44 20 7946 0000") }, []string{"international_phone"}, 0.2},
		{"personal email with agency", func(l *models.Listing) { l.ContactEmail = models.Str("agent@gmail.com") }, []string{"personal_email"}, 0.1},
		{"one image", func(l *models.Listing) { l.Images = l.Images[:1] }, []string{"few_images"}, 0.05},
		{"unknown agency", func(l *models.Listing) { l.AgencyName = models.Str("Quick Rentals") }, []string{"unknown_agency"}, 0.05},
	}

	d := NewScamDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := cleanListing()
			tt.mutate(l)
			a := d.Analyze(l)
			if !slices.Equal(a.FlagTypes(), tt.want) {
				t.Errorf("flags = %v; want %v", a.FlagTypes(), tt.want)
			}
			if a.Score != tt.score {
				t.Errorf("score = %.2f; want %.2f", a.Score, tt.score)
			}
		})
	}
}

func TestScamScoreClamped(t *testing.T) {
	l := cleanListing()
	l.Price = 500
	l.Description = models.Str("Send money via western union or moneygram, landlord abroad, no viewing, urgently")
	l.ContactName, l.ContactPhone, l.AgencyName = nil, nil, nil
	l.Images = nil

	a := NewScamDetector().Analyze(l)
	if a.Score != 1 || a.RiskLevel != models.RiskHigh {
		t.Errorf("Analyze = %.2f %s; want 1 high", a.Score, a.RiskLevel)
	}
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskSafe},
		{0.14, models.RiskSafe},
		{0.15, models.RiskLow},
		{0.35, models.RiskMedium},
		{0.59, models.RiskMedium},
		{0.6, models.RiskHigh},
		{1, models.RiskHigh},
	}
	for _, tt := range tests {
		if got := models.RiskLevelFor(tt.score); got != tt.want {
			t.Errorf("RiskLevelFor(%v) = %s; want %s", tt.score, got, tt.want)
		}
	}
}

func TestIsInternationalPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"021 555 1234", false},
		{"+27 82 555 1234", false},
		{"0027 82 555 1234", false},
		{"+44 20 7946 0000", true},
		{"001-202-555-0100", true},
		{"(082) 555-1234", false},
	}
	for _, tt := range tests {
		if got := IsInternationalPhone(tt.phone); got != tt.want {
			t.Errorf("IsInternationalPhone(%q) = %v; want %v", tt.phone, got, tt.want)
		}
	}
}

func TestFormatRand(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{800, "800"},
		{8000, "8 000"},
		{125000, "125 000"},
		{1250000.4, "1 250 000"},
	}
	for _, tt := range tests {
		if got := formatRand(tt.in); got != tt.want {
			t.Errorf("formatRand(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
