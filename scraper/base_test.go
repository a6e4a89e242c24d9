package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/models"
	"rental-scraper/utils"
)

func testBase(cfg Config) *Base {
	if cfg.Source == "" {
		cfg.Source = models.SourceProperty24
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	return NewBase(cfg, Deps{Logger: utils.NewDiscardLogger()})
}

func TestRateLimitDelay(t *testing.T) {
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{2, 500 * time.Millisecond},
		{1, 1000 * time.Millisecond},
		{3, 334 * time.Millisecond},
		{0, time.Second},
	}
	for _, tt := range tests {
		if got := RateLimitDelay(tt.rps); got != tt.want {
			t.Errorf("RateLimitDelay(%v) = %v; want %v", tt.rps, got, tt.want)
		}
	}

	b := NewBase(Config{Source: models.SourceProperty24, RateLimit: 2}, Deps{})
	if got := b.RateLimitDelay(); got != 500*time.Millisecond {
		t.Errorf("Base.RateLimitDelay() = %v; want 500ms", got)
	}
}

func TestUserAgentRoundRobinPerInstance(t *testing.T) {
	agents := []string{"ua-1", "ua-2", "ua-3"}
	a := testBase(Config{UserAgents: agents})
	b := testBase(Config{UserAgents: agents})

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, a.NextUserAgent())
	}
	want := []string{"ua-1", "ua-2", "ua-3", "ua-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rotation[%d] = %q; want %q", i, got[i], want[i])
		}
	}
	if first := b.NextUserAgent(); first != "ua-1" {
		t.Errorf("second instance should start its own rotation, got %q", first)
	}
}

func TestFetchSendsHeadersAndRotates(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		if r.Header.Get("Cookie") != "c_user=1" {
			t.Errorf("cookie header: got %q", r.Header.Get("Cookie"))
		}
		if r.Header.Get("Referer") == "" || r.Header.Get("Accept-Language") == "" {
			t.Error("expected browser-like Referer and Accept-Language headers")
		}
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	b := testBase(Config{BaseURL: srv.URL, UserAgents: []string{"a", "b"}, Cookies: "c_user=1"})
	for i := 0; i < 3; i++ {
		if _, err := b.Fetch(context.Background(), srv.URL, ""); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if strings.Join(seen, ",") != "a,b,a" {
		t.Errorf("user agents: got %v", seen)
	}
}

func TestFetchStatusErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		case "/flaky":
			if n%2 == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, "recovered")
		}
	}))
	defer srv.Close()

	b := testBase(Config{BaseURL: srv.URL, MaxRetries: 3})

	_, err := b.Fetch(context.Background(), srv.URL+"/missing", "")
	if !IsNotFound(err) {
		t.Errorf("missing: want not-found error, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("404 must not be retryable")
	}

	_, err = b.Fetch(context.Background(), srv.URL+"/blocked", "")
	if !IsAuthRequired(err) {
		t.Errorf("blocked: want auth error, got %v", err)
	}

	atomic.StoreInt32(&calls, 0)
	body, err := b.Fetch(context.Background(), srv.URL+"/flaky", "")
	if err != nil || body != "recovered" {
		t.Errorf("flaky: got %q, %v; want recovered after retry", body, err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&HTTPError{StatusCode: 503}, true},
		{&HTTPError{StatusCode: 429}, true},
		{&HTTPError{StatusCode: 404}, false},
		{&HTTPError{StatusCode: 403}, false},
		{fmt.Errorf("wrapped: %w", &HTTPError{StatusCode: 502}), true},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}

func listingsN(n int) []*models.Listing {
	out := make([]*models.Listing, n)
	for i := range out {
		out[i] = &models.Listing{ExternalID: fmt.Sprint(i), Price: 1000}
	}
	return out
}

func pageURL(p int) string { return fmt.Sprintf("https://example.test/p%d", p) }

func TestPaginateStopsAtEmptyPage(t *testing.T) {
	b := testBase(Config{MaxPages: 10})
	var visited []int
	res := b.Paginate(context.Background(), pageURL, func(_ context.Context, url string) ([]*models.Listing, error) {
		var p int
		fmt.Sscanf(url, "https://example.test/p%d", &p)
		visited = append(visited, p)
		if p == 3 {
			return nil, nil
		}
		return listingsN(2), nil
	})

	if len(visited) != 3 || visited[0] != 1 || visited[2] != 3 {
		t.Errorf("visited pages: got %v, want [1 2 3]", visited)
	}
	if !res.Success || len(res.Listings) != 4 || res.PagesScraped != 2 {
		t.Errorf("result: success=%v listings=%d pages=%d", res.Success, len(res.Listings), res.PagesScraped)
	}
}

func TestPaginatePageOneNotFoundAborts(t *testing.T) {
	b := testBase(Config{MaxPages: 5})
	calls := 0
	res := b.Paginate(context.Background(), pageURL, func(context.Context, string) ([]*models.Listing, error) {
		calls++
		return nil, &HTTPError{StatusCode: 404}
	})

	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if res.Success {
		t.Error("page 1 not found must fail the run")
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Page 1: ") {
		t.Errorf("errors: got %v", res.Errors)
	}
}

func TestPaginateLaterNotFoundStopsQuietly(t *testing.T) {
	b := testBase(Config{MaxPages: 5})
	res := b.Paginate(context.Background(), pageURL, func(_ context.Context, url string) ([]*models.Listing, error) {
		if strings.HasSuffix(url, "p2") {
			return nil, &HTTPError{StatusCode: 404}
		}
		return listingsN(1), nil
	})
	if !res.Success || len(res.Errors) != 0 || len(res.Listings) != 1 {
		t.Errorf("result: success=%v errors=%v listings=%d", res.Success, res.Errors, len(res.Listings))
	}
}

func TestPaginateRecordsPageErrorsAndContinues(t *testing.T) {
	b := testBase(Config{MaxPages: 3})
	res := b.Paginate(context.Background(), pageURL, func(_ context.Context, url string) ([]*models.Listing, error) {
		if strings.HasSuffix(url, "p2") {
			return nil, &HTTPError{StatusCode: 500}
		}
		return listingsN(1), nil
	})
	if len(res.Listings) != 2 || len(res.Errors) != 1 || res.Errors[0] != "Page 2: HTTP 500: Internal Server Error" {
		t.Errorf("result: listings=%d errors=%v", len(res.Listings), res.Errors)
	}
	if !res.Success {
		t.Error("partial page failure with listings should succeed")
	}
}

func TestPaginateAuthTerminal(t *testing.T) {
	b := testBase(Config{MaxPages: 5, AuthTerminal: true, AuthMessage: "login needed"})
	calls := 0
	res := b.Paginate(context.Background(), pageURL, func(context.Context, string) ([]*models.Listing, error) {
		calls++
		return nil, &HTTPError{StatusCode: 403}
	})
	if calls != 1 {
		t.Errorf("auth failure should stop after one page, got %d calls", calls)
	}
	if res.Success || len(res.Errors) != 2 || res.Errors[1] != "login needed" {
		t.Errorf("result: success=%v errors=%v", res.Success, res.Errors)
	}
}

func TestContainersKeepsOutermost(t *testing.T) {
	html := `<div class="listing-item"><div class="listing-item-inner">x</div></div>
		<div class="listing-item">y</div>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))

	got := Containers(doc, []string{"article[class*=listing]", "div[class*=listing-item]"})
	if got == nil || got.Length() != 2 {
		t.Fatalf("containers: got %v", got)
	}
	if Containers(doc, []string{"li[class*=property]"}) != nil {
		t.Error("no match should return nil")
	}
}
