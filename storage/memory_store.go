package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"rental-scraper/models"
)

// MemoryStore is an in-process Store used for dry runs and tests. It applies
// the same search semantics as PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[string]*models.StoredListing
	order    []string
	jobs     map[string]*models.ScrapeJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*models.StoredListing),
		jobs:     make(map[string]*models.ScrapeJob),
	}
}

func (m *MemoryStore) Upsert(_ context.Context, sl *models.StoredListing) error {
	if sl == nil {
		return fmt.Errorf("memory: nil listing")
	}
	key := sl.Key()
	cp := *sl
	cp.Images = slices.Clone(sl.Images)
	cp.ScamFlags = slices.Clone(sl.ScamFlags)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.listings[key]; ok {
		cp.FirstSeenAt = prev.FirstSeenAt
	} else {
		m.order = append(m.order, key)
	}
	m.listings[key] = &cp
	return nil
}

func (m *MemoryStore) ExistsByKey(_ context.Context, source models.Source, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.listings[string(source)+":"+externalID]
	return ok, nil
}

// Get returns a copy of the stored listing for key, or ErrNotFound.
func (m *MemoryStore) Get(key string) (*models.StoredListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sl, ok := m.listings[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sl
	return &cp, nil
}

// All returns every stored listing in insertion order.
func (m *MemoryStore) All() []*models.StoredListing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.StoredListing, 0, len(m.order))
	for _, key := range m.order {
		cp := *m.listings[key]
		out = append(out, &cp)
	}
	return out
}

func (m *MemoryStore) CreateJob(_ context.Context, job *models.ScrapeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) FinishJob(_ context.Context, job *models.ScrapeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("memory: finish job %s: %w", job.ID, ErrNotFound)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

// Job returns a copy of the recorded job, or ErrNotFound.
func (m *MemoryStore) Job(id string) (*models.ScrapeJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) Search(_ context.Context, f models.SearchFilter) ([]*models.StoredListing, int, error) {
	f.Normalize()

	m.mu.RLock()
	var matched []*models.StoredListing
	for _, key := range m.order {
		sl := m.listings[key]
		if matches(sl, &f) {
			cp := *sl
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	sortListings(matched, f.Sort)

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func matches(sl *models.StoredListing, f *models.SearchFilter) bool {
	if sl.Status != models.StatusActive {
		return false
	}
	if f.City != "" && !containsFold(sl.City, f.City) {
		return false
	}
	if len(f.Suburbs) > 0 && !slices.Contains(f.Suburbs, sl.Suburb) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !slices.Contains(f.PropertyTypes, sl.PropertyType) {
		return false
	}
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, sl.Source) {
		return false
	}
	if f.MinPrice > 0 && sl.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && sl.Price > f.MaxPrice {
		return false
	}
	if f.MinBedrooms > 0 && sl.Bedrooms < f.MinBedrooms {
		return false
	}
	if f.MaxBedrooms > 0 && sl.Bedrooms > f.MaxBedrooms {
		return false
	}
	if f.MinBathrooms > 0 && sl.Bathrooms < f.MinBathrooms {
		return false
	}
	if f.PetFriendly && !sl.PetFriendly {
		return false
	}
	if f.Furnished && !sl.Furnished {
		return false
	}
	if sl.ScamScore > f.MaxScamScore {
		return false
	}
	if f.Query != "" && !containsFold(sl.Title, f.Query) && !containsFold(models.Deref(sl.Description), f.Query) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sortListings(ls []*models.StoredListing, order string) {
	var less func(a, b *models.StoredListing) bool
	switch order {
	case models.SortPriceAsc:
		less = func(a, b *models.StoredListing) bool { return a.Price < b.Price }
	case models.SortPriceDesc:
		less = func(a, b *models.StoredListing) bool { return a.Price > b.Price }
	case models.SortScamScoreAsc:
		less = func(a, b *models.StoredListing) bool { return a.ScamScore < b.ScamScore }
	default:
		less = func(a, b *models.StoredListing) bool { return a.FirstSeenAt.After(b.FirstSeenAt) }
	}
	sort.SliceStable(ls, func(i, j int) bool { return less(ls[i], ls[j]) })
}

func (m *MemoryStore) Close() error { return nil }
