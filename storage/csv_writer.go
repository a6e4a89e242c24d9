package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"rental-scraper/models"
)

var csvHeader = []string{
	"source", "external_id", "source_url", "title", "price", "price_frequency",
	"suburb", "city", "province", "property_type", "bedrooms", "bathrooms",
	"parking", "furnished", "pet_friendly", "images", "agent_phone", "scraped_at",
}

// CSVWriter dumps scraped listings, as received from the sources, to a CSV
// file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends one row per listing.
func (c *CSVWriter) WriteRaw(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if err := c.writer.Write(csvRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func csvRow(l *models.Listing) []string {
	return []string{
		string(l.Source),
		l.ExternalID,
		l.SourceURL,
		l.Title,
		strconv.FormatFloat(l.Price, 'f', 2, 64),
		string(l.PriceFrequency),
		l.Suburb,
		l.City,
		l.Province,
		string(l.PropertyType),
		strconv.Itoa(l.Bedrooms),
		strconv.Itoa(l.Bathrooms),
		strconv.Itoa(l.ParkingSpaces),
		strconv.FormatBool(l.Furnished),
		strconv.FormatBool(l.PetFriendly),
		strings.Join(l.Images, " "),
		models.Deref(l.ContactPhone),
		l.ScrapedAt.Format(time.RFC3339),
	}
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
