package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"rental-scraper/models"
	"rental-scraper/services"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

const (
	DefaultCity       = "Cape Town"
	DefaultScrapeCity = "cape-town"
)

// Firer starts a background ingestion run.
type Firer interface {
	Fire(req services.Request) bool
}

// Options tune the scrape endpoints.
type Options struct {
	// BatchMaxPages caps pages per source for POST /api/scrape.
	BatchMaxPages  int
	BatchDeadline  time.Duration
	SourceDeadline time.Duration
	Concurrent     bool
}

type Handler struct {
	listings storage.ListingReader
	trigger  Firer
	runner   services.Runner
	metrics  http.Handler
	opts     Options
	logger   *utils.Logger
}

func NewHandler(listings storage.ListingReader, trigger Firer, runner services.Runner, metrics http.Handler, opts Options, logger *utils.Logger) *Handler {
	return &Handler{
		listings: listings,
		trigger:  trigger,
		runner:   runner,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

// Router registers every route.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)
	r.HandleFunc("/api/listings", h.HandleListings).Methods(http.MethodGet)
	r.HandleFunc("/api/scrape", h.HandleScrape).Methods(http.MethodPost)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("[api] %s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type listingJSON struct {
	ID             string   `json:"id"`
	ExternalID     string   `json:"external_id"`
	Source         string   `json:"source"`
	SourceURL      string   `json:"source_url"`
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	PropertyType   string   `json:"property_type"`
	Address        *string  `json:"address"`
	Suburb         string   `json:"suburb"`
	City           string   `json:"city"`
	Province       string   `json:"province"`
	PostalCode     *string  `json:"postal_code"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Price          float64  `json:"price"`
	PriceFrequency string   `json:"price_frequency"`
	Deposit        *float64 `json:"deposit"`
	Bedrooms       int      `json:"bedrooms"`
	Bathrooms      int      `json:"bathrooms"`
	Parking        int      `json:"parking"`
	SizeSqm        *float64 `json:"size_sqm"`
	Furnished      bool     `json:"furnished"`
	PetFriendly    bool     `json:"pet_friendly"`
	Images         []string `json:"images"`
	AgentName      *string  `json:"agent_name"`
	AgentPhone     *string  `json:"agent_phone"`
	AgentEmail     *string  `json:"agent_email"`
	AgencyName     *string  `json:"agency_name"`
	ScamScore      float64  `json:"scam_score"`
	ScamFlags      []string `json:"scam_flags"`
	RiskLevel      string   `json:"risk_level"`
	Status         string   `json:"status"`
	FirstSeenAt    string   `json:"first_seen_at"`
	LastSeenAt     string   `json:"last_seen_at"`
}

func toJSON(sl *models.StoredListing) listingJSON {
	images := sl.Images
	if images == nil {
		images = []string{}
	}
	flags := sl.ScamFlags
	if flags == nil {
		flags = []string{}
	}
	return listingJSON{
		ID:             sl.Key(),
		ExternalID:     sl.ExternalID,
		Source:         string(sl.Source),
		SourceURL:      sl.SourceURL,
		Title:          sl.Title,
		Description:    sl.Description,
		PropertyType:   string(sl.PropertyType),
		Address:        sl.Address,
		Suburb:         sl.Suburb,
		City:           sl.City,
		Province:       sl.Province,
		PostalCode:     sl.PostalCode,
		Latitude:       sl.Latitude,
		Longitude:      sl.Longitude,
		Price:          sl.Price,
		PriceFrequency: string(sl.PriceFrequency),
		Deposit:        sl.Deposit,
		Bedrooms:       sl.Bedrooms,
		Bathrooms:      sl.Bathrooms,
		Parking:        sl.ParkingSpaces,
		SizeSqm:        sl.SizeSqm,
		Furnished:      sl.Furnished,
		PetFriendly:    sl.PetFriendly,
		Images:         images,
		AgentName:      sl.ContactName,
		AgentPhone:     sl.ContactPhone,
		AgentEmail:     sl.ContactEmail,
		AgencyName:     sl.AgencyName,
		ScamScore:      sl.ScamScore,
		ScamFlags:      flags,
		RiskLevel:      string(models.RiskLevelFor(sl.ScamScore)),
		Status:         string(sl.Status),
		FirstSeenAt:    sl.FirstSeenAt.UTC().Format(time.RFC3339),
		LastSeenAt:     sl.LastSeenAt.UTC().Format(time.RFC3339),
	}
}

type listingsResponse struct {
	Properties      []listingJSON `json:"properties"`
	Total           int           `json:"total"`
	Page            int           `json:"page"`
	Limit           int           `json:"limit"`
	TotalPages      int           `json:"total_pages"`
	ScrapeTriggered bool          `json:"scrape_triggered"`
}

// HandleListings serves GET /api/listings. An empty result starts a
// background scrape for the requested area.
func (h *Handler) HandleListings(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, total, err := h.listings.Search(r.Context(), f)
	if err != nil {
		h.logger.Error("[api] listing search: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch listings"})
		return
	}

	resp := listingsResponse{
		Properties: make([]listingJSON, 0, len(rows)),
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}
	for _, sl := range rows {
		resp.Properties = append(resp.Properties, toJSON(sl))
	}

	if total == 0 && h.trigger != nil {
		sources := make([]string, len(f.Sources))
		for i, s := range f.Sources {
			sources[i] = string(s)
		}
		resp.ScrapeTriggered = h.trigger.Fire(services.Request{
			Sources:        sources,
			City:           f.City,
			Suburbs:        f.Suburbs,
			Concurrent:     h.opts.Concurrent,
			SourceDeadline: h.opts.SourceDeadline,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ParseFilter reads listing filters from the query string. The filter is
// returned normalised.
func ParseFilter(r *http.Request) (models.SearchFilter, error) {
	q := r.URL.Query()
	f := models.SearchFilter{
		Query:   strings.TrimSpace(q.Get("q")),
		City:    strings.TrimSpace(q.Get("city")),
		Suburbs: splitList(q.Get("suburbs")),
		Sort:    q.Get("sort"),
	}
	if f.City == "" {
		f.City = DefaultCity
	}
	for _, t := range splitList(q.Get("types")) {
		f.PropertyTypes = append(f.PropertyTypes, models.PropertyType(strings.ToLower(t)))
	}
	for _, s := range splitList(q.Get("sources")) {
		src, ok := models.ParseSource(s)
		if !ok {
			return f, fmt.Errorf("unknown source %q", s)
		}
		f.Sources = append(f.Sources, src)
	}
	f.PetFriendly = q.Get("pets") == "true"
	f.Furnished = q.Get("furnished") == "true"

	var err error
	floats := []struct {
		name string
		dst  *float64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"max_scam", &f.MaxScamScore},
	}
	for _, p := range floats {
		if *p.dst, err = parseFloat(q.Get(p.name)); err != nil {
			return f, fmt.Errorf("invalid %s", p.name)
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"min_beds", &f.MinBedrooms},
		{"max_beds", &f.MaxBedrooms},
		{"min_baths", &f.MinBathrooms},
		{"page", &f.Page},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		if *p.dst, err = parseInt(q.Get(p.name)); err != nil {
			return f, fmt.Errorf("invalid %s", p.name)
		}
	}

	f.Normalize()
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

type scrapeRequest struct {
	Source string `json:"source"`
	City   string `json:"city"`
}

type scrapeResponse struct {
	Success           bool     `json:"success"`
	JobID             string   `json:"job_id,omitempty"`
	PropertiesFound   int      `json:"properties_found"`
	PropertiesAdded   int      `json:"properties_added"`
	PropertiesUpdated int      `json:"properties_updated"`
	Errors            []string `json:"errors"`
}

// HandleScrape serves POST /api/scrape, the scheduled batch entry point.
// It runs synchronously with a reduced page budget.
func (h *Handler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Debug("[api] scrape body ignored: %v", err)
		body = scrapeRequest{}
	}
	if body.Source == "" {
		body.Source = services.AllSourcesID
	}
	if body.City == "" {
		body.City = DefaultScrapeCity
	}

	ctx := r.Context()
	if h.opts.BatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.BatchDeadline)
		defer cancel()
	}

	summary, err := h.runner.Run(ctx, services.Request{
		Sources:        []string{body.Source},
		City:           body.City,
		Concurrent:     h.opts.Concurrent,
		MaxPages:       h.opts.BatchMaxPages,
		SourceDeadline: h.opts.SourceDeadline,
	})
	if err != nil {
		h.logger.Error("[api] scrape %s/%s: %v", body.Source, body.City, err)
		writeJSON(w, http.StatusInternalServerError, scrapeResponse{Errors: []string{err.Error()}})
		return
	}

	errs := summary.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, scrapeResponse{
		Success:           summary.Success,
		JobID:             summary.JobID,
		PropertiesFound:   summary.Found,
		PropertiesAdded:   summary.Added,
		PropertiesUpdated: summary.Updated,
		Errors:            errs,
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
