package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rental-scraper/models"
	"rental-scraper/scraper/registry"
)

// Sources file validation errors.
var (
	ErrUnknownSource      = errors.New("unknown source")
	ErrInvalidURL         = errors.New("base_url and search_url must be absolute http(s) URLs")
	ErrInvalidRateLimit   = errors.New("rate_limit must be non-negative")
	ErrInvalidMaxPages    = errors.New("max_pages must be non-negative")
	ErrInvalidTimeout     = errors.New("request_timeout_sec must be non-negative")
	ErrInvalidMaxRetries  = errors.New("max_retries must be non-negative")
	ErrEmptySourcesConfig = errors.New("sources file defines no sources")
)

// SourcesFile is the YAML document named by SOURCES_FILE.
type SourcesFile struct {
	Sources map[string]SourceConfig `yaml:"sources"`
}

// SourceConfig overrides one source's fetch policy. Omitted fields keep the
// built-in defaults.
type SourceConfig struct {
	BaseURL           string   `yaml:"base_url"`
	SearchURL         string   `yaml:"search_url"`
	RateLimit         float64  `yaml:"rate_limit"`
	MaxPages          int      `yaml:"max_pages"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
	MaxRetries        int      `yaml:"max_retries"`
	Cookies           string   `yaml:"cookies"`
	UserAgents        []string `yaml:"user_agents"`
}

// LoadSources reads and validates a sources file.
func LoadSources(path string) (map[models.Source]registry.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read sources file: %w", err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, ErrEmptySourcesConfig
	}

	out := make(map[models.Source]registry.Options, len(file.Sources))
	for name, sc := range file.Sources {
		src, ok := models.ParseSource(name)
		if !ok {
			return nil, fmt.Errorf("config: %w: %q", ErrUnknownSource, name)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("config: source %s: %w", src, err)
		}
		out[src] = sc.Options()
	}
	return out, nil
}

// Validate checks a single source entry.
func (s *SourceConfig) Validate() error {
	for _, raw := range []string{s.BaseURL, s.SearchURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidURL
		}
	}
	switch {
	case s.RateLimit < 0:
		return ErrInvalidRateLimit
	case s.MaxPages < 0:
		return ErrInvalidMaxPages
	case s.RequestTimeoutSec < 0:
		return ErrInvalidTimeout
	case s.MaxRetries < 0:
		return ErrInvalidMaxRetries
	}
	return nil
}

func (s *SourceConfig) Options() registry.Options {
	return registry.Options{
		BaseURL:        s.BaseURL,
		SearchURL:      s.SearchURL,
		RateLimit:      s.RateLimit,
		MaxPages:       s.MaxPages,
		RequestTimeout: time.Duration(s.RequestTimeoutSec) * time.Second,
		MaxRetries:     s.MaxRetries,
		Cookies:        s.Cookies,
		UserAgents:     s.UserAgents,
	}
}
