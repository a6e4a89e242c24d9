package services

import (
	"fmt"
	"math"
	"testing"

	"rental-scraper/models"
	"rental-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

func listing(src models.Source, id string, price float64) *models.Listing {
	return &models.Listing{
		Source:     src,
		ExternalID: id,
		SourceURL:  "https://example.test/" + id,
		Title:      "Listing " + id,
		Price:      price,
	}
}

func TestCleanerDropsInvalidListings(t *testing.T) {
	c := NewCleaner(newTestLogger())

	noURL := listing(models.SourceProperty24, "4", 9000)
	noURL.SourceURL = "   "

	raw := []*models.Listing{
		listing(models.SourceProperty24, "1", 9000),
		nil,
		listing(models.SourceProperty24, "2", 0),
		listing(models.SourceProperty24, "3", -50),
		listing(models.SourceProperty24, "nan", math.NaN()),
		listing(models.SourceProperty24, "inf", math.Inf(1)),
		noURL,
		listing(models.SourceProperty24, " ", 9000),
		listing(models.SourceProperty24, "1", 9500),
		listing(models.SourceFacebook, "1", 9000),
	}

	got := c.Clean(raw)
	if len(got) != 2 {
		t.Fatalf("Clean kept %d listings; want 2", len(got))
	}
	if got[0].Key() != "property24:1" || got[0].Price != 9000 {
		t.Errorf("first kept = %s @ %v; want property24:1 @ 9000", got[0].Key(), got[0].Price)
	}
	if got[1].Key() != "facebook:1" {
		t.Errorf("second kept = %s; want facebook:1", got[1].Key())
	}
}

func TestCleanerNormalisesFields(t *testing.T) {
	c := NewCleaner(newTestLogger())

	l := listing(models.SourcePrivateProperty, " T123 ", 12000)
	l.Title = "  Sunny\n\t2 bed   flat "
	l.Suburb = " Sea  Point"
	l.Description = models.Str("Close to\n\nthe  promenade")
	l.Bedrooms = -1
	l.Deposit = new(float64)
	size := math.Inf(1)
	l.SizeSqm = &size
	l.Images = []string{"a.jpg", " a.jpg", "", "b.jpg"}

	got := c.Clean([]*models.Listing{l})
	if len(got) != 1 {
		t.Fatalf("Clean kept %d listings; want 1", len(got))
	}
	g := got[0]

	checks := []struct {
		field, got, want string
	}{
		{"ExternalID", g.ExternalID, "T123"},
		{"Title", g.Title, "Sunny 2 bed flat"},
		{"Suburb", g.Suburb, "Sea Point"},
		{"Description", models.Deref(g.Description), "Close to the promenade"},
		{"Images", fmt.Sprint(g.Images), "[a.jpg b.jpg]"},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %q; want %q", tt.field, tt.got, tt.want)
		}
	}
	if g.Bedrooms != 0 {
		t.Errorf("Bedrooms = %d; want 0", g.Bedrooms)
	}
	if g.Deposit != nil || g.SizeSqm != nil {
		t.Errorf("invalid deposit/size should be cleared, got %v/%v", g.Deposit, g.SizeSqm)
	}
}

func TestDedupImagesCaps(t *testing.T) {
	var images []string
	for i := 0; i < 30; i++ {
		images = append(images, fmt.Sprintf("img%d.jpg", i%25))
	}
	got := dedupImages(images, 20)
	if len(got) != 20 {
		t.Errorf("dedupImages kept %d; want 20", len(got))
	}
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  hello  ", "hello"},
		{"a  b\r\nc", "a b c"},
	}
	for _, tt := range tests {
		if got := normaliseText(tt.in); got != tt.want {
			t.Errorf("normaliseText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
