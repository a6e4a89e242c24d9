// Package metrics exposes Prometheus collectors for scrape runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the scraper's metrics on a private registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	fetches     *prometheus.CounterVec
	fetchDur    *prometheus.HistogramVec
	pages       *prometheus.CounterVec
	listings    *prometheus.CounterVec
	sourceRuns  *prometheus.CounterVec
	runDur      *prometheus.HistogramVec
	upserts     *prometheus.CounterVec
	riskLevels  *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// New builds and registers all collectors.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_fetches_total",
		Help: "Outbound page fetches by source and HTTP status (0 for transport errors).",
	}, []string{"source", "status"})
	c.fetchDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_scraper_fetch_duration_seconds",
		Help:    "Latency of outbound page fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	c.pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_pages_total",
		Help: "Listing pages scraped with at least one listing.",
	}, []string{"source"})
	c.listings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_listings_total",
		Help: "Listings extracted by source.",
	}, []string{"source"})
	c.sourceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_source_runs_total",
		Help: "Source runs by outcome.",
	}, []string{"source", "outcome"})
	c.runDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_scraper_source_run_duration_seconds",
		Help:    "Wall time of one source run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"source"})
	c.upserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_upserts_total",
		Help: "Sink upserts by outcome (added, updated, failed).",
	}, []string{"outcome"})
	c.riskLevels = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scraper_scam_risk_total",
		Help: "Scored listings by scam risk level.",
	}, []string{"level"})
	c.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rental_scraper_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per source.",
	}, []string{"source"})

	c.registry.MustRegister(
		c.fetches, c.fetchDur, c.pages, c.listings,
		c.sourceRuns, c.runDur, c.upserts, c.riskLevels, c.lastSuccess,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ObserveFetch(source string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(source, strconv.Itoa(status)).Inc()
	c.fetchDur.WithLabelValues(source).Observe(d.Seconds())
}

func (c *Collector) PageScraped(source string, listings int) {
	if c == nil {
		return
	}
	c.pages.WithLabelValues(source).Inc()
	c.listings.WithLabelValues(source).Add(float64(listings))
}

func (c *Collector) SourceRun(source string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "success"
		c.lastSuccess.WithLabelValues(source).SetToCurrentTime()
	}
	c.sourceRuns.WithLabelValues(source, outcome).Inc()
	c.runDur.WithLabelValues(source).Observe(d.Seconds())
}

func (c *Collector) Upsert(outcome string) {
	if c == nil {
		return
	}
	c.upserts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RiskLevel(level string) {
	if c == nil {
		return
	}
	c.riskLevels.WithLabelValues(level).Inc()
}
