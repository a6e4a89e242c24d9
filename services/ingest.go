package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"rental-scraper/metrics"
	"rental-scraper/models"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

// AllSourcesID selects every registered source.
const AllSourcesID = "all"

const storeTimeout = 30 * time.Second

// Request is one ingestion run.
type Request struct {
	// Sources holds source ids or "all". Empty means all.
	Sources    []string
	City       string
	Suburbs    []string
	Concurrent bool
	// MaxPages caps pages per source when positive.
	MaxPages       int
	SourceDeadline time.Duration
}

// Key identifies requests that would do the same work.
func (r Request) Key() string {
	sources := make([]string, 0, len(r.Sources))
	for _, s := range ResolveSources(r.Sources) {
		sources = append(sources, string(s))
	}
	slices.Sort(sources)
	suburbs := make([]string, len(r.Suburbs))
	for i, s := range r.Suburbs {
		suburbs[i] = strings.ToLower(strings.TrimSpace(s))
	}
	slices.Sort(suburbs)
	return strings.Join(sources, ",") + "|" + strings.ToLower(strings.TrimSpace(r.City)) + "|" + strings.Join(suburbs, ",")
}

// ResolveSources expands "all" and lowercases ids. Unknown ids are passed
// through so the run reports them as failed sources.
func ResolveSources(ids []string) []models.Source {
	var out []models.Source
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if id == AllSourcesID {
			return slices.Clone(models.AllSources)
		}
		src := models.Source(id)
		if !slices.Contains(out, src) {
			out = append(out, src)
		}
	}
	if len(out) == 0 {
		return slices.Clone(models.AllSources)
	}
	return out
}

// Summary reports what a run stored.
type Summary struct {
	JobID   string
	Success bool
	Found   int
	Added   int
	Updated int
	Errors  []string
	Stored  []*models.StoredListing
	Run     *RunResult
}

// IngestStore is what the pipeline needs from storage.
type IngestStore interface {
	storage.Sink
	storage.JobStore
}

// Pipeline runs scrape, clean, dedup, score and upsert as one job.
type Pipeline struct {
	orchestrator *Orchestrator
	cleaner      *Cleaner
	detector     *ScamDetector
	store        IngestStore
	raw          storage.RawListingWriter
	logger       *utils.Logger
	metrics      *metrics.Collector
	now          func() time.Time
}

// NewPipeline wires a pipeline. raw may be nil.
func NewPipeline(o *Orchestrator, store IngestStore, raw storage.RawListingWriter, logger *utils.Logger, m *metrics.Collector) *Pipeline {
	return &Pipeline{
		orchestrator: o,
		cleaner:      NewCleaner(logger),
		detector:     NewScamDetector(),
		store:        store,
		raw:          raw,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// Run returns an error only when the job could not be recorded. Source and
// per-record failures are reported in Summary.Errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	sources := ResolveSources(req.Sources)
	job := &models.ScrapeJob{
		ID:        uuid.NewString(),
		Source:    jobSource(req.Sources, sources),
		City:      req.City,
		Status:    models.JobRunning,
		StartedAt: p.now(),
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("ingest: create job: %w", err)
	}
	p.logger.Info("[ingest] job %s started: sources=%v city=%q", job.ID, sources, req.City)

	run := p.orchestrator.Run(ctx, RunConfig{
		Sources:        sources,
		City:           req.City,
		Suburbs:        req.Suburbs,
		Concurrent:     req.Concurrent,
		SourceDeadline: req.SourceDeadline,
		MaxPages:       req.MaxPages,
	})
	summary := &Summary{JobID: job.ID, Run: run, Errors: run.Errors()}

	scraped := run.Listings()
	if p.raw != nil {
		if err := p.raw.WriteRaw(scraped); err != nil {
			p.logger.Warn("[ingest] raw dump failed: %v", err)
			summary.Errors = append(summary.Errors, err.Error())
		}
	}

	listings := DeduplicateListings(p.cleaner.Clean(scraped))
	summary.Found = len(listings)

	// Scraping may have used up ctx; writes get their own budget.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	now := p.now()
	for _, l := range listings {
		sl, existed, err := p.storeListing(storeCtx, l, now)
		if err != nil {
			p.logger.Error("[ingest] %v", err)
			p.metrics.Upsert("failed")
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		if existed {
			summary.Updated++
			p.metrics.Upsert("updated")
		} else {
			summary.Added++
			p.metrics.Upsert("added")
		}
		summary.Stored = append(summary.Stored, sl)
	}

	completed := p.now()
	job.CompletedAt = &completed
	job.Found = summary.Found
	job.Added = summary.Added
	job.Updated = summary.Updated
	job.Status = models.JobCompleted
	if summary.Added+summary.Updated == 0 && len(summary.Errors) > 0 {
		job.Status = models.JobFailed
	}
	job.ErrorMessage = strings.Join(summary.Errors, "; ")
	summary.Success = job.Status == models.JobCompleted

	if err := p.store.FinishJob(storeCtx, job); err != nil {
		p.logger.Error("[ingest] finishing job %s: %v", job.ID, err)
		summary.Errors = append(summary.Errors, err.Error())
	}

	p.logger.Info("[ingest] job %s %s: found=%d added=%d updated=%d errors=%d",
		job.ID, job.Status, summary.Found, summary.Added, summary.Updated, len(summary.Errors))
	return summary, nil
}

func (p *Pipeline) storeListing(ctx context.Context, l *models.Listing, now time.Time) (*models.StoredListing, bool, error) {
	analysis := p.detector.Analyze(l)
	existed, err := p.store.ExistsByKey(ctx, l.Source, l.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: %w", l.Key(), err)
	}
	sl := &models.StoredListing{
		Listing:     *l,
		ScamScore:   analysis.Score,
		ScamFlags:   analysis.FlagTypes(),
		Status:      models.StatusActive,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if err := p.store.Upsert(ctx, sl); err != nil {
		return nil, false, fmt.Errorf("upsert %s: %w", l.Key(), err)
	}
	p.metrics.RiskLevel(string(analysis.RiskLevel))
	return sl, existed, nil
}

func jobSource(requested []string, resolved []models.Source) string {
	for _, id := range requested {
		if strings.EqualFold(strings.TrimSpace(id), AllSourcesID) {
			return AllSourcesID
		}
	}
	if len(requested) == 0 {
		return AllSourcesID
	}
	names := make([]string, len(resolved))
	for i, s := range resolved {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
