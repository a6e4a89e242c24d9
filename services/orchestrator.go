package services

import (
	"context"
	"fmt"
	"time"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/utils"
)

// ScraperFactory builds a fresh scraper for a source. A positive maxPages
// caps the page budget of the returned instance.
type ScraperFactory interface {
	New(source models.Source, maxPages int) (scraper.Scraper, error)
}

// RunConfig describes one orchestrated scrape.
type RunConfig struct {
	Sources    []models.Source
	City       string
	Suburbs    []string
	Concurrent bool
	// SourceDeadline bounds each source's whole run, suburbs included.
	SourceDeadline time.Duration
	MaxPages       int
}

type SourceResult struct {
	Source models.Source
	Result *models.ScraperResult
}

type RunResult struct {
	// Success is true when at least one source succeeded.
	Success         bool
	TotalProperties int
	Results         []SourceResult
	Duration        time.Duration
}

// Listings flattens the per-source listings in configured source order.
func (r *RunResult) Listings() []*models.Listing {
	var out []*models.Listing
	for _, sr := range r.Results {
		out = append(out, sr.Result.Listings...)
	}
	return out
}

// Errors returns every source error prefixed with its source name.
func (r *RunResult) Errors() []string {
	var out []string
	for _, sr := range r.Results {
		for _, e := range sr.Result.Errors {
			out = append(out, fmt.Sprintf("%s: %s", sr.Source, e))
		}
	}
	return out
}

// Orchestrator runs the configured sources and always yields one result per
// source, failures included.
type Orchestrator struct {
	factory ScraperFactory
	logger  *utils.Logger
	metrics *metrics.Collector
}

func NewOrchestrator(factory ScraperFactory, logger *utils.Logger, m *metrics.Collector) *Orchestrator {
	return &Orchestrator{factory: factory, logger: logger, metrics: m}
}

// Run blocks until every source has finished or hit its deadline.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) *RunResult {
	start := time.Now()
	results := make([]SourceResult, len(cfg.Sources))

	o.logger.Info("[orchestrator] scraping %d sources for %q (concurrent=%v)", len(cfg.Sources), cfg.City, cfg.Concurrent)

	if cfg.Concurrent {
		pool := utils.NewWorkerPool(len(cfg.Sources))
		for i, src := range cfg.Sources {
			pool.Submit(func() {
				results[i] = SourceResult{Source: src, Result: o.runSource(ctx, src, cfg)}
			})
		}
		pool.Wait()
	} else {
		for i, src := range cfg.Sources {
			results[i] = SourceResult{Source: src, Result: o.runSource(ctx, src, cfg)}
		}
	}

	out := &RunResult{Results: results}
	for _, r := range results {
		if r.Result.Success {
			out.Success = true
			out.TotalProperties += len(r.Result.Listings)
		}
	}
	out.Duration = time.Since(start)
	o.logger.Info("[orchestrator] done in %v: %d listings, success=%v", out.Duration.Round(time.Millisecond), out.TotalProperties, out.Success)
	return out
}

func (o *Orchestrator) runSource(ctx context.Context, src models.Source, cfg RunConfig) (res *models.ScraperResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("[orchestrator] %s panicked: %v", src, r)
			res = &models.ScraperResult{Errors: []string{fmt.Sprintf("panic: %v", r)}}
		}
		res.Duration = time.Since(start)
		o.metrics.SourceRun(string(src), res.Success, res.Duration)
	}()

	if cfg.SourceDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.SourceDeadline)
		defer cancel()
	}

	s, err := o.factory.New(src, cfg.MaxPages)
	if err != nil {
		o.logger.Error("[orchestrator] %v", err)
		return &models.ScraperResult{Errors: []string{err.Error()}}
	}

	suburbs := cfg.Suburbs
	if len(suburbs) == 0 {
		suburbs = []string{""}
	}

	merged := &models.ScraperResult{}
	for _, suburb := range suburbs {
		if ctx.Err() != nil {
			merged.Errors = append(merged.Errors, fmt.Sprintf("deadline reached before suburb %q", suburb))
			break
		}
		r, err := s.Scrape(ctx, cfg.City, suburb)
		if err != nil {
			merged.Errors = append(merged.Errors, err.Error())
		}
		if r == nil {
			continue
		}
		merged.Success = merged.Success || r.Success
		merged.Listings = append(merged.Listings, r.Listings...)
		merged.Errors = append(merged.Errors, r.Errors...)
		merged.PagesScraped += r.PagesScraped
	}

	o.logger.Info("[orchestrator] %s: %d listings, %d pages, %d errors", src, len(merged.Listings), merged.PagesScraped, len(merged.Errors))
	return merged
}
