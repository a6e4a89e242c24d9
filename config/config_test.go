package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"rental-scraper/models"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

const validSources = `
sources:
  property24:
    rate_limit: 1.5
    max_pages: 4
    request_timeout_sec: 20
    user_agents: ["ua-a", "ua-b"]
  facebook:
    base_url: "https://m.facebook.com"
    cookies: "c_user=1; xs=2"
`

func TestLoadEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("SOURCES", "property24, facebook,")
	t.Setenv("SUBURBS", "Sea Point,Gardens")
	t.Setenv("CONCURRENT", "false")
	t.Setenv("SOURCE_DEADLINE_SEC", "90")
	t.Setenv("BATCH_MAX_PAGES", "not-a-number")

	cfg := Load()
	if cfg.PostgresHost != "db" || cfg.PostgresPort != "5432" {
		t.Errorf("postgres = %s:%s", cfg.PostgresHost, cfg.PostgresPort)
	}
	if !slices.Equal(cfg.Sources, []string{"property24", "facebook"}) {
		t.Errorf("Sources = %q", cfg.Sources)
	}
	if !slices.Equal(cfg.Suburbs, []string{"Sea Point", "Gardens"}) {
		t.Errorf("Suburbs = %q", cfg.Suburbs)
	}
	if cfg.Concurrent {
		t.Error("Concurrent = true; want false")
	}
	if cfg.SourceDeadline != 90*time.Second {
		t.Errorf("SourceDeadline = %v; want 90s", cfg.SourceDeadline)
	}
	if cfg.BatchMaxPages != 3 {
		t.Errorf("BatchMaxPages = %d; want fallback 3", cfg.BatchMaxPages)
	}
	if cfg.City != "Cape Town" {
		t.Errorf("City = %q; want Cape Town", cfg.City)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "h", PostgresPort: "1", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "disable",
	}
	want := "host=h port=1 user=u password=p dbname=d sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q; want %q", got, want)
	}
}

func TestLoadSources(t *testing.T) {
	opts, err := LoadSources(writeSources(t, validSources))
	if err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}
	p24 := opts[models.SourceProperty24]
	if p24.RateLimit != 1.5 || p24.MaxPages != 4 || p24.RequestTimeout != 20*time.Second {
		t.Errorf("property24 = %+v", p24)
	}
	if len(p24.UserAgents) != 2 {
		t.Errorf("user agents = %v", p24.UserAgents)
	}
	if fb := opts[models.SourceFacebook]; fb.BaseURL != "https://m.facebook.com" || fb.Cookies == "" {
		t.Errorf("facebook = %+v", fb)
	}
}

func TestLoadSourcesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "sources: {}\n", ErrEmptySourcesConfig},
		{"unknown source", "sources:\n  gumtree:\n    max_pages: 1\n", ErrUnknownSource},
		{"bad url", "sources:\n  property24:\n    base_url: \"ftp://x\"\n", ErrInvalidURL},
		{"relative url", "sources:\n  property24:\n    search_url: \"/to-rent\"\n", ErrInvalidURL},
		{"negative rate", "sources:\n  facebook:\n    rate_limit: -1\n", ErrInvalidRateLimit},
		{"negative pages", "sources:\n  facebook:\n    max_pages: -2\n", ErrInvalidMaxPages},
		{"negative timeout", "sources:\n  facebook:\n    request_timeout_sec: -2\n", ErrInvalidTimeout},
		{"negative retries", "sources:\n  facebook:\n    max_retries: -2\n", ErrInvalidMaxRetries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSources(writeSources(t, tt.content))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadSources error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSourceOptionsMergesEnv(t *testing.T) {
	cfg := &Config{
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		FacebookCookies: "from-env",
		SourcesFile:     writeSources(t, validSources),
	}
	opts, err := cfg.SourceOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != len(models.AllSources) {
		t.Errorf("got options for %d sources; want %d", len(opts), len(models.AllSources))
	}
	if got := opts[models.SourceProperty24].RequestTimeout; got != 20*time.Second {
		t.Errorf("file timeout should win, got %v", got)
	}
	if got := opts[models.SourcePrivateProperty].RequestTimeout; got != 30*time.Second {
		t.Errorf("env timeout should fill in, got %v", got)
	}
	if got := opts[models.SourceFacebook].Cookies; got != "c_user=1; xs=2" {
		t.Errorf("file cookies should win, got %q", got)
	}

	cfg.SourcesFile = ""
	opts, _ = cfg.SourceOptions()
	if got := opts[models.SourceFacebook].Cookies; got != "from-env" {
		t.Errorf("env cookies = %q; want from-env", got)
	}
}
