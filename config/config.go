package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rental-scraper/models"
	"rental-scraper/scraper/registry"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTTPAddr string
	LogLevel string

	City       string
	Sources    []string
	Suburbs    []string
	Concurrent bool

	RequestTimeout  time.Duration
	SourceDeadline  time.Duration
	MaxRetries      int
	BatchMaxPages   int
	BatchDeadline   time.Duration
	TriggerDeadline time.Duration

	FacebookCookies string
	CSVOutputPath   string
	SourcesFile     string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		City:       getEnv("CITY", "Cape Town"),
		Sources:    getEnvList("SOURCES", []string{"all"}),
		Suburbs:    getEnvList("SUBURBS", nil),
		Concurrent: getEnvBool("CONCURRENT", true),

		RequestTimeout:  getEnvSeconds("REQUEST_TIMEOUT_SEC", 30),
		SourceDeadline:  getEnvSeconds("SOURCE_DEADLINE_SEC", 300),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		BatchMaxPages:   getEnvInt("BATCH_MAX_PAGES", 3),
		BatchDeadline:   getEnvSeconds("BATCH_DEADLINE_SEC", 120),
		TriggerDeadline: getEnvSeconds("TRIGGER_DEADLINE_SEC", 600),

		FacebookCookies: getEnv("FACEBOOK_COOKIES", ""),
		CSVOutputPath:   getEnv("CSV_OUTPUT_PATH", ""),
		SourcesFile:     getEnv("SOURCES_FILE", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SourceOptions merges the sources file (when configured) with the
// env-wide fetch settings. File values win.
func (c *Config) SourceOptions() (map[models.Source]registry.Options, error) {
	opts := make(map[models.Source]registry.Options)
	if c.SourcesFile != "" {
		file, err := LoadSources(c.SourcesFile)
		if err != nil {
			return nil, err
		}
		opts = file
	}

	for _, src := range models.AllSources {
		o := opts[src]
		if o.RequestTimeout == 0 {
			o.RequestTimeout = c.RequestTimeout
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = c.MaxRetries
		}
		if src == models.SourceFacebook && o.Cookies == "" {
			o.Cookies = c.FacebookCookies
		}
		opts[src] = o
	}
	return opts, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
