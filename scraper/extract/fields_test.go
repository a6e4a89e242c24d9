package extract

import (
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
)

func TestNormalizePropertyType(t *testing.T) {
	tests := []struct {
		in   string
		want models.PropertyType
	}{
		{"Modern Apartment", models.PropertyApartment},
		{"2 bed flat", models.PropertyApartment},
		{"Penthouse with views", models.PropertyApartment},
		{"Townhouse in complex", models.PropertyTownhouse},
		{"Family House", models.PropertyHouse},
		{"Bachelor unit", models.PropertyStudio},
		{"Studio", models.PropertyStudio},
		{"Room to let", models.PropertyRoom},
		{"3 bedroom", models.PropertyOther},
		{"", models.PropertyOther},
	}

	for _, tt := range tests {
		if got := NormalizePropertyType(tt.in); got != tt.want {
			t.Errorf("NormalizePropertyType(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestDetectFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want models.PriceFrequency
	}{
		{"R12 000 per month", models.FrequencyMonthly},
		{"R3 500 per week", models.FrequencyWeekly},
		{"R900 pd", models.FrequencyDaily},
		{"R3 500pw", models.FrequencyWeekly},
		{"R800 p/d", models.FrequencyDaily},
		{"Great equipment included", models.FrequencyMonthly},
		{"", models.FrequencyMonthly},
	}

	for _, tt := range tests {
		if got := DetectFrequency(tt.in); got != tt.want {
			t.Errorf("DetectFrequency(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestAmenityFlags(t *testing.T) {
	if !IsFurnished("Fully furnished apartment") {
		t.Error("furnished text should be furnished")
	}
	if IsFurnished("Unfurnished, furnished on request") {
		t.Error("text mentioning unfurnished should not be furnished")
	}
	if !IsPetFriendly("Garden flat, pets allowed") {
		t.Error("pets allowed should be pet friendly")
	}
	if IsPetFriendly("No pets") {
		t.Error("no pets should not be pet friendly")
	}
}

func TestCountRooms(t *testing.T) {
	text := "Apartment with 2 Bedrooms, 1 bathroom and 1 garage"
	if got := CountRooms(BedroomsPattern, text); got != 2 {
		t.Errorf("bedrooms: got %d, want 2", got)
	}
	if got := CountRooms(BathroomsPattern, text); got != 1 {
		t.Errorf("bathrooms: got %d, want 1", got)
	}
	if got := CountRooms(ParkingPattern, text); got != 0 {
		t.Errorf("parking without garage keyword: got %d, want 0", got)
	}
	if got := CountRooms(ParkingGaragePattern, text); got != 1 {
		t.Errorf("parking with garage keyword: got %d, want 1", got)
	}
	if got := ParseRooms("approx 3"); got != 3 {
		t.Errorf("ParseRooms: got %d, want 3", got)
	}
}

func TestDetailFieldExtractors(t *testing.T) {
	text := `Deposit: R 24 000. Floor size 85 m². Call +27 82 555 1234 or mail jane@seeff.co.za. {"latitude": -33.91, "longitude": 18.42}`

	if d := ExtractDeposit(text); d == nil || *d != 24000 {
		t.Errorf("deposit: got %v, want 24000", d)
	}
	if s := ExtractSize(text); s == nil || *s != 85 {
		t.Errorf("size: got %v, want 85", s)
	}
	if p := ExtractPhone(text); p != "+27 82 555 1234" {
		t.Errorf("phone: got %q", p)
	}
	if e := ExtractEmail(text); e != "jane@seeff.co.za" {
		t.Errorf("email: got %q", e)
	}
	lat, lng := ExtractCoordinates(text)
	if lat == nil || *lat != -33.91 || lng == nil || *lng != 18.42 {
		t.Errorf("coordinates: got %v, %v", lat, lng)
	}
}

func TestLocationHelpers(t *testing.T) {
	suburb, city, province := SplitLocation("Lovely home in Sea Point, Cape Town, Western Cape")
	if suburb != "Sea Point" || city != "Cape Town" || province != "Western Cape" {
		t.Errorf("SplitLocation: got %q, %q, %q", suburb, city, province)
	}

	if got := CityFromURL("https://www.privateproperty.co.za/to-rent/cape-town?page=2"); got != "Cape Town" {
		t.Errorf("CityFromURL: got %q", got)
	}
	if got := SuburbFromAddress("12 Main Road, Observatory, Cape Town"); got != "Observatory" {
		t.Errorf("SuburbFromAddress: got %q", got)
	}
	if got := ExtractPostalCode("12 Main Road, Observatory, 7925"); got != "7925" {
		t.Errorf("ExtractPostalCode: got %q", got)
	}
}

func TestExternalIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.property24.com/to-rent/sea-point/cape-town/western-cape/11021/114563412", "114563412"},
		{"https://www.facebook.com/marketplace/item/987654321/", "987654321"},
		{"https://www.privateproperty.co.za/to-rent/cape-town/modern-loft?ref=home", "modern-loft"},
	}
	for _, tt := range tests {
		if got := ExternalIDFromURL(tt.in); got != tt.want {
			t.Errorf("ExternalIDFromURL(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  <b>Sunny</b>&nbsp;flat &amp; garden\n\n near <i>beach</i> ")
	want := "Sunny flat & garden near beach"
	if got != want {
		t.Errorf("CleanText: got %q, want %q", got, want)
	}
}

func TestExtractImages(t *testing.T) {
	html := `<div>
		<img src="/photos/1.jpg">
		<img src="/img/logo.png">
		<img src="https://cdn.example.com/2.jpg">
		<img src="/photos/1.jpg">
		<img src="data:image/gif;base64,AAA" data-src="/photos/3.jpg">
		<img src="/static/placeholder.svg">
	</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://www.example.co.za/to-rent/cape-town")

	got := ExtractImages(doc.Selection, base, ImageOptions{Exclude: []string{"placeholder", "logo"}, Limit: 10})
	want := []string{
		"https://www.example.co.za/photos/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://www.example.co.za/photos/3.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractImages:\n got  %v\n want %v", got, want)
	}

	capped := ExtractImages(doc.Selection, base, ImageOptions{Limit: 2})
	if len(capped) != 2 {
		t.Errorf("capped: got %d images, want 2", len(capped))
	}
}
