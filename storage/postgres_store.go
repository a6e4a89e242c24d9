package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"rental-scraper/models"
	"rental-scraper/utils"
)

// PostgresStore persists listings and scrape jobs to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := &utils.RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   2 * time.Second,
		MaxDelay:    2 * time.Second,
		Logger:      logger,
	}
	if err := ping.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id              BIGSERIAL PRIMARY KEY,
			external_id     TEXT          NOT NULL,
			source          VARCHAR(32)   NOT NULL,
			source_url      TEXT          NOT NULL,
			title           TEXT          NOT NULL,
			description     TEXT,
			property_type   VARCHAR(16)   NOT NULL DEFAULT 'other',
			address         TEXT,
			suburb          TEXT          NOT NULL DEFAULT '',
			city            TEXT          NOT NULL DEFAULT '',
			province        TEXT          NOT NULL DEFAULT '',
			postal_code     VARCHAR(10),
			latitude        DOUBLE PRECISION,
			longitude       DOUBLE PRECISION,
			price           NUMERIC(12,2) NOT NULL CHECK (price > 0),
			price_frequency VARCHAR(10)   NOT NULL DEFAULT 'monthly',
			deposit         NUMERIC(12,2),
			bedrooms        INT           NOT NULL DEFAULT 0,
			bathrooms       INT           NOT NULL DEFAULT 0,
			parking         INT           NOT NULL DEFAULT 0,
			size_sqm        NUMERIC(10,2),
			furnished       BOOLEAN       NOT NULL DEFAULT FALSE,
			pet_friendly    BOOLEAN       NOT NULL DEFAULT FALSE,
			images          TEXT[]        NOT NULL DEFAULT '{}',
			agent_name      TEXT,
			agent_phone     TEXT,
			agent_email     TEXT,
			agency_name     TEXT,
			scam_score      NUMERIC(4,2)  NOT NULL DEFAULT 0,
			scam_flags      TEXT[]        NOT NULL DEFAULT '{}',
			status          VARCHAR(16)   NOT NULL DEFAULT 'active',
			first_seen_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			last_seen_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			created_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (source, external_id)
		);

		CREATE INDEX IF NOT EXISTS idx_properties_price      ON properties(price);
		CREATE INDEX IF NOT EXISTS idx_properties_suburb     ON properties(suburb);
		CREATE INDEX IF NOT EXISTS idx_properties_city       ON properties(city);
		CREATE INDEX IF NOT EXISTS idx_properties_scam_score ON properties(scam_score);
		CREATE INDEX IF NOT EXISTS idx_properties_status     ON properties(status);

		CREATE TABLE IF NOT EXISTS scraping_jobs (
			id                 UUID        PRIMARY KEY,
			source             VARCHAR(32) NOT NULL,
			city               TEXT        NOT NULL DEFAULT '',
			status             VARCHAR(16) NOT NULL,
			started_at         TIMESTAMPTZ NOT NULL,
			completed_at       TIMESTAMPTZ,
			properties_found   INT         NOT NULL DEFAULT 0,
			properties_added   INT         NOT NULL DEFAULT 0,
			properties_updated INT         NOT NULL DEFAULT 0,
			error_message      TEXT
		);
	`)
	return err
}

var listingColumns = []string{
	"external_id", "source", "source_url", "title", "description", "property_type",
	"address", "suburb", "city", "province", "postal_code", "latitude", "longitude",
	"price", "price_frequency", "deposit", "bedrooms", "bathrooms", "parking",
	"size_sqm", "furnished", "pet_friendly", "images",
	"agent_name", "agent_phone", "agent_email", "agency_name",
	"scam_score", "scam_flags", "status", "first_seen_at", "last_seen_at",
}

// upsertSQL keeps first_seen_at and created_at of an existing row.
var upsertSQL = func() string {
	placeholders := make([]string, len(listingColumns))
	var updates []string
	for i, col := range listingColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch col {
		case "external_id", "source", "first_seen_at":
			continue
		}
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	updates = append(updates, "updated_at = NOW()")
	return fmt.Sprintf(`INSERT INTO properties (%s) VALUES (%s)
		ON CONFLICT (source, external_id) DO UPDATE SET %s`,
		strings.Join(listingColumns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
}()

func (s *PostgresStore) Upsert(ctx context.Context, sl *models.StoredListing) error {
	l := &sl.Listing
	images := l.Images
	if images == nil {
		images = []string{}
	}
	flags := sl.ScamFlags
	if flags == nil {
		flags = []string{}
	}
	_, err := s.db.ExecContext(ctx, upsertSQL,
		l.ExternalID, string(l.Source), l.SourceURL, l.Title, l.Description, string(l.PropertyType),
		l.Address, l.Suburb, l.City, l.Province, l.PostalCode, l.Latitude, l.Longitude,
		l.Price, string(l.PriceFrequency), l.Deposit, l.Bedrooms, l.Bathrooms, l.ParkingSpaces,
		l.SizeSqm, l.Furnished, l.PetFriendly, pq.Array(images),
		l.ContactName, l.ContactPhone, l.ContactEmail, l.AgencyName,
		sl.ScamScore, pq.Array(flags), string(sl.Status), sl.FirstSeenAt, sl.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", l.Key(), err)
	}
	return nil
}

func (s *PostgresStore) ExistsByKey(ctx context.Context, source models.Source, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM properties WHERE source = $1 AND external_id = $2)`,
		string(source), externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: exists %s:%s: %w", source, externalID, err)
	}
	return exists, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_jobs (id, source, city, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Source, job.City, string(job.Status), job.StartedAt)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, job *models.ScrapeJob) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scraping_jobs
		SET status = $2, completed_at = $3, properties_found = $4,
		    properties_added = $5, properties_updated = $6, error_message = NULLIF($7, '')
		WHERE id = $1`,
		job.ID, string(job.Status), job.CompletedAt, job.Found, job.Added, job.Updated, job.ErrorMessage)
	if err != nil {
		return fmt.Errorf("postgres: finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: finish job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

var sortClauses = map[string]string{
	models.SortPriceAsc:     "price ASC, id",
	models.SortPriceDesc:    "price DESC, id",
	models.SortDateDesc:     "first_seen_at DESC, id DESC",
	models.SortScamScoreAsc: "scam_score ASC, id",
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(f models.SearchFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	add("status = $%d", string(models.StatusActive))
	if f.City != "" {
		add("city ILIKE $%d", "%"+f.City+"%")
	}
	if len(f.Suburbs) > 0 {
		add("suburb = ANY($%d)", pq.Array(f.Suburbs))
	}
	if len(f.PropertyTypes) > 0 {
		types := make([]string, len(f.PropertyTypes))
		for i, t := range f.PropertyTypes {
			types[i] = string(t)
		}
		add("property_type = ANY($%d)", pq.Array(types))
	}
	if len(f.Sources) > 0 {
		sources := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			sources[i] = string(src)
		}
		add("source = ANY($%d)", pq.Array(sources))
	}
	if f.MinPrice > 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= $%d", f.MaxPrice)
	}
	if f.MinBedrooms > 0 {
		add("bedrooms >= $%d", f.MinBedrooms)
	}
	if f.MaxBedrooms > 0 {
		add("bedrooms <= $%d", f.MaxBedrooms)
	}
	if f.MinBathrooms > 0 {
		add("bathrooms >= $%d", f.MinBathrooms)
	}
	if f.PetFriendly {
		conds = append(conds, "pet_friendly")
	}
	if f.Furnished {
		conds = append(conds, "furnished")
	}
	if f.MaxScamScore > 0 {
		add("scam_score <= $%d", f.MaxScamScore)
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	return strings.Join(conds, " AND "), args
}

func (s *PostgresStore) Search(ctx context.Context, f models.SearchFilter) ([]*models.StoredListing, int, error) {
	f.Normalize()
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := fmt.Sprintf("SELECT %s FROM properties WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(listingColumns, ", "), where, sortClauses[f.Sort], len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	var out []*models.StoredListing
	for rows.Next() {
		sl, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, sl)
	}
	return out, total, rows.Err()
}

func scanListing(rows *sql.Rows) (*models.StoredListing, error) {
	sl := &models.StoredListing{}
	l := &sl.Listing
	var source, propertyType, frequency, status string
	err := rows.Scan(
		&l.ExternalID, &source, &l.SourceURL, &l.Title, &l.Description, &propertyType,
		&l.Address, &l.Suburb, &l.City, &l.Province, &l.PostalCode, &l.Latitude, &l.Longitude,
		&l.Price, &frequency, &l.Deposit, &l.Bedrooms, &l.Bathrooms, &l.ParkingSpaces,
		&l.SizeSqm, &l.Furnished, &l.PetFriendly, pq.Array(&l.Images),
		&l.ContactName, &l.ContactPhone, &l.ContactEmail, &l.AgencyName,
		&sl.ScamScore, pq.Array(&sl.ScamFlags), &status, &sl.FirstSeenAt, &sl.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	l.Source = models.Source(source)
	l.PropertyType = models.PropertyType(propertyType)
	l.PriceFrequency = models.PriceFrequency(frequency)
	sl.Status = models.ListingStatus(status)
	l.ScrapedAt = sl.LastSeenAt
	return sl, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
