package property24

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/utils"
)

const detailPage = `<html><head><title>Rental | Property24</title></head><body>
<div class="breadcrumb">Sea Point, Cape Town, Western Cape</div>
<h1>2 Bedroom Apartment</h1>
<div class="p24_price">R 16 000</div>
<div class="p24_description">Sunny apartment close to the promenade with sea views from the balcony.</div>
<ul><li>2 Bedrooms</li><li>1 Bathroom</li><li>1 Garage</li></ul>
<p>Pet friendly. 85 m²</p>
<img src="/photos/1.jpg"><img src="/static/logo.png">
</body></html>`

func newTestScraper(t *testing.T, h http.Handler) (*Scraper, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.SearchURL = srv.URL + "/to-rent"
	cfg.RateLimit = 1000
	cfg.MaxPages = 5
	return New(cfg, scraper.Deps{Logger: utils.NewDiscardLogger()}), srv
}

func TestScrapeFollowsDetailLinksWithoutContainers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/to-rent/cape-town/p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/to-rent/sea-point/cape-town/western-cape/11021/114563412">Apartment</a>
			<a href="/to-rent/sea-point/cape-town/western-cape/11021/114563412">Apartment again</a>
			<a href="/to-rent/cape-town/p2">Next</a>
		</body></html>`)
	})
	mux.HandleFunc("/to-rent/sea-point/cape-town/western-cape/11021/114563412", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	})
	s, srv := newTestScraper(t, mux)

	res, err := s.Scrape(context.Background(), "Cape Town", "")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if !res.Success || len(res.Errors) != 0 {
		t.Fatalf("result: success=%v errors=%v", res.Success, res.Errors)
	}
	if len(res.Listings) != 1 {
		t.Fatalf("listings: got %d, want 1", len(res.Listings))
	}

	l := res.Listings[0]
	if l.ExternalID != "114563412" {
		t.Errorf("external id: got %q", l.ExternalID)
	}
	if l.Price != 16000 || l.Title != "2 Bedroom Apartment" {
		t.Errorf("price/title: got %v, %q", l.Price, l.Title)
	}
	if l.Suburb != "Sea Point" || l.City != "Cape Town" || l.Province != "Western Cape" {
		t.Errorf("location: got %q, %q, %q", l.Suburb, l.City, l.Province)
	}
	if l.Bedrooms != 2 || l.Bathrooms != 1 || l.ParkingSpaces != 1 {
		t.Errorf("rooms: got %d/%d/%d", l.Bedrooms, l.Bathrooms, l.ParkingSpaces)
	}
	if l.PropertyType != models.PropertyApartment || !l.PetFriendly {
		t.Errorf("type/pets: got %q, %v", l.PropertyType, l.PetFriendly)
	}
	if l.SizeSqm == nil || *l.SizeSqm != 85 {
		t.Errorf("size: got %v", l.SizeSqm)
	}
	if len(l.Images) != 1 || l.Images[0] != srv.URL+"/photos/1.jpg" {
		t.Errorf("images: got %v", l.Images)
	}
}

func TestScrapeUsesSuburbInPath(t *testing.T) {
	var hit bool
	mux := http.NewServeMux()
	mux.HandleFunc("/to-rent/sea-point/cape-town/p1", func(w http.ResponseWriter, r *http.Request) {
		hit = true
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	})
	s, _ := newTestScraper(t, mux)

	res, err := s.Scrape(context.Background(), "cape-town", "Sea Point")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if !hit {
		t.Error("expected /to-rent/sea-point/cape-town/p1 to be requested")
	}
	if !res.Success || len(res.Listings) != 0 {
		t.Errorf("empty first page: success=%v listings=%d", res.Success, len(res.Listings))
	}
}

func TestScrapeFirstPageNotFound(t *testing.T) {
	s, _ := newTestScraper(t, http.NotFoundHandler())

	res, _ := s.Scrape(context.Background(), "atlantis", "")
	if res.Success || len(res.Errors) != 1 {
		t.Errorf("result: success=%v errors=%v", res.Success, res.Errors)
	}
}

func TestScrapePropertyDetailWithoutPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/to-rent/x/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>POA</h1><p>Price on application</p></body></html>`)
	})
	s, srv := newTestScraper(t, mux)

	l, err := s.ScrapePropertyDetail(context.Background(), srv.URL+"/to-rent/x/1")
	if err != nil || l != nil {
		t.Errorf("got %v, %v; want nil, nil", l, err)
	}
}
