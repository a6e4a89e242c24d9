package models

import "time"

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ScrapeJob records one ingestion run.
type ScrapeJob struct {
	ID           string
	Source       string
	City         string
	Status       JobStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Found        int
	Added        int
	Updated      int
	ErrorMessage string
}

// Sort orders accepted by listing search.
const (
	SortPriceAsc     = "price_asc"
	SortPriceDesc    = "price_desc"
	SortDateDesc     = "date_desc"
	SortScamScoreAsc = "scam_score_asc"
)

// SearchFilter narrows a listing search. Zero values mean "no constraint".
type SearchFilter struct {
	Query         string
	City          string
	Suburbs       []string
	PropertyTypes []PropertyType
	Sources       []Source
	MinPrice      float64
	MaxPrice      float64
	MinBedrooms   int
	MaxBedrooms   int
	MinBathrooms  int
	PetFriendly   bool
	Furnished     bool
	MaxScamScore  float64
	Sort          string
	Page          int
	Limit         int
}

const (
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 50
	DefaultMaxScamScore = 0.5
)

// Normalize applies defaults and clamps paging.
func (f *SearchFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.MaxScamScore <= 0 {
		f.MaxScamScore = DefaultMaxScamScore
	}
	switch f.Sort {
	case SortPriceAsc, SortPriceDesc, SortDateDesc, SortScamScoreAsc:
	default:
		f.Sort = SortDateDesc
	}
}

// Offset returns the row offset for the current page.
func (f *SearchFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
