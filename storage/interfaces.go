package storage

import (
	"context"
	"errors"

	"rental-scraper/models"
)

// ErrNotFound is returned when a job or listing does not exist.
var ErrNotFound = errors.New("storage: not found")

// Sink accepts scored listings. Upsert is keyed by (source, external_id) and
// is safe to retry.
type Sink interface {
	Upsert(ctx context.Context, l *models.StoredListing) error
	ExistsByKey(ctx context.Context, source models.Source, externalID string) (bool, error)
}

// JobStore records ingestion runs.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ScrapeJob) error
	FinishJob(ctx context.Context, job *models.ScrapeJob) error
}

// ListingReader serves listing search. It returns one page of results and
// the total match count.
type ListingReader interface {
	Search(ctx context.Context, f models.SearchFilter) ([]*models.StoredListing, int, error)
}

// Store is a complete backend.
type Store interface {
	Sink
	JobStore
	ListingReader
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.Listing) error
	Close() error
}
