package storage

import (
	"strings"
	"testing"

	"rental-scraper/models"
)

func TestBuildWhereMinimal(t *testing.T) {
	where, args := buildWhere(models.SearchFilter{})
	if where != "status = $1" {
		t.Errorf("where = %q; want %q", where, "status = $1")
	}
	if len(args) != 1 || args[0] != "active" {
		t.Errorf("args = %v; want [active]", args)
	}
}

func TestBuildWhereFull(t *testing.T) {
	f := models.SearchFilter{
		Query:         "view",
		City:          "Cape Town",
		Suburbs:       []string{"Sea Point"},
		PropertyTypes: []models.PropertyType{models.PropertyApartment},
		Sources:       []models.Source{models.SourceProperty24},
		MinPrice:      5000,
		MaxPrice:      20000,
		MinBedrooms:   1,
		MaxBedrooms:   3,
		MinBathrooms:  1,
		PetFriendly:   true,
		Furnished:     true,
		MaxScamScore:  0.5,
	}
	where, args := buildWhere(f)

	for _, want := range []string{
		"status = $1",
		"city ILIKE $2",
		"suburb = ANY($3)",
		"property_type = ANY($4)",
		"source = ANY($5)",
		"price >= $6",
		"price <= $7",
		"bedrooms >= $8",
		"bedrooms <= $9",
		"bathrooms >= $10",
		"pet_friendly",
		"furnished",
		"scam_score <= $11",
		"(title ILIKE $12 OR description ILIKE $12)",
	} {
		if !strings.Contains(where, want) {
			t.Errorf("where clause missing %q:\n%s", want, where)
		}
	}
	if len(args) != 12 {
		t.Fatalf("got %d args; want 12", len(args))
	}
	if args[1] != "%Cape Town%" {
		t.Errorf("city arg = %v", args[1])
	}
	if args[11] != "%view%" {
		t.Errorf("query arg = %v", args[11])
	}
}

func TestUpsertSQLPreservesFirstSeen(t *testing.T) {
	if !strings.Contains(upsertSQL, "ON CONFLICT (source, external_id) DO UPDATE") {
		t.Fatalf("upsert is not keyed by (source, external_id):\n%s", upsertSQL)
	}
	if strings.Contains(upsertSQL, "first_seen_at = EXCLUDED") {
		t.Error("upsert must not overwrite first_seen_at")
	}
	if !strings.Contains(upsertSQL, "last_seen_at = EXCLUDED.last_seen_at") {
		t.Error("upsert must refresh last_seen_at")
	}
	if !strings.Contains(upsertSQL, "$32") || strings.Contains(upsertSQL, "$33") {
		t.Errorf("expected exactly %d placeholders", len(listingColumns))
	}
}

func TestSortClausesCoverEveryOrder(t *testing.T) {
	for _, s := range []string{models.SortPriceAsc, models.SortPriceDesc, models.SortDateDesc, models.SortScamScoreAsc} {
		if sortClauses[s] == "" {
			t.Errorf("no ORDER BY for %q", s)
		}
	}
}
