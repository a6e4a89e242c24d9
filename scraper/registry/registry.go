// Package registry maps source names onto scraper constructors.
package registry

import (
	"fmt"
	"time"

	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/scraper/facebook"
	"rental-scraper/scraper/privateproperty"
	"rental-scraper/scraper/property24"
)

// Options override a source's default fetch policy. Zero values keep the
// default.
type Options struct {
	BaseURL        string
	SearchURL      string
	RateLimit      float64
	MaxPages       int
	RequestTimeout time.Duration
	MaxRetries     int
	Cookies        string
	UserAgents     []string
}

// DefaultConfig returns the production configuration of source.
func DefaultConfig(source models.Source) (scraper.Config, error) {
	switch source {
	case models.SourcePrivateProperty:
		return privateproperty.DefaultConfig(), nil
	case models.SourceProperty24:
		return property24.DefaultConfig(), nil
	case models.SourceFacebook:
		return facebook.DefaultConfig(), nil
	}
	return scraper.Config{}, fmt.Errorf("no scraper available for %s", source)
}

// New builds the scraper for source.
func New(source models.Source, opts Options, deps scraper.Deps) (scraper.Scraper, error) {
	cfg, err := DefaultConfig(source)
	if err != nil {
		return nil, err
	}
	cfg = opts.apply(cfg)

	switch source {
	case models.SourcePrivateProperty:
		return privateproperty.New(cfg, deps), nil
	case models.SourceProperty24:
		return property24.New(cfg, deps), nil
	default:
		return facebook.New(cfg, deps), nil
	}
}

func (o Options) apply(cfg scraper.Config) scraper.Config {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.SearchURL != "" {
		cfg.SearchURL = o.SearchURL
	}
	if o.RateLimit > 0 {
		cfg.RateLimit = o.RateLimit
	}
	if o.MaxPages > 0 {
		cfg.MaxPages = o.MaxPages
	}
	if o.RequestTimeout > 0 {
		cfg.RequestTimeout = o.RequestTimeout
	}
	if o.MaxRetries > 0 {
		cfg.MaxRetries = o.MaxRetries
	}
	if o.Cookies != "" {
		cfg.Cookies = o.Cookies
	}
	if len(o.UserAgents) > 0 {
		cfg.UserAgents = o.UserAgents
	}
	return cfg
}

// Factory builds scrapers with fixed per-source options.
type Factory struct {
	Options map[models.Source]Options
	Deps    scraper.Deps
}

// New builds a fresh scraper; every call returns an independent instance.
// A positive maxPages caps the source's page budget for this instance.
func (f *Factory) New(source models.Source, maxPages int) (scraper.Scraper, error) {
	opts := f.Options[source]
	if maxPages > 0 && (opts.MaxPages == 0 || opts.MaxPages > maxPages) {
		opts.MaxPages = maxPages
	}
	return New(source, opts, f.Deps)
}
