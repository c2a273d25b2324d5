package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}

// Record and content store backends
const (
	RecordStorePostgres = "postgres"
	RecordStoreSQLite   = "sqlite"

	ContentStoreSpaces = "spaces"
	ContentStoreGCS    = "gcs"
)

type EnviornmentVariable struct {
	GO_ENV    string
	LOG_LEVEL string
	LOG_FILE  string
	PORT      int
	// Scraping
	SOURCES_FILE         string
	REQUEST_DELAY        time.Duration
	RUN_TIMEOUT          time.Duration
	SCHEDULE             string
	MAX_PAGES_PER_BUCKET int
	DENY_HOSTS           []string
	// Record store
	RECORD_STORE string
	DATABASE_URL string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	SQLITE_PATH  string
	// Content store
	CONTENT_STORE          string
	DO_SPACES_ACCESS_KEY   string
	DO_SPACES_SECRET_KEY   string
	DO_SPACES_BUCKET       string
	DO_SPACES_REGION       string
	DO_SPACES_ENDPOINT     string
	DO_SPACES_CDN_ENDPOINT string
	GCS_BUCKET             string
	GCS_PUBLIC_BASE_URL    string
	// Redis Configuration
	REDIS_URL string
	// NATS
	NATS_URL     string
	NATS_SUBJECT string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	delay, err := durationEnv("REQUEST_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}

	runTimeout, err := durationEnv("RUN_TIMEOUT", 2*time.Hour)
	if err != nil {
		return nil, err
	}

	maxPages, err := strconv.Atoi(os.Getenv("MAX_PAGES_PER_BUCKET"))
	if err != nil || maxPages < 1 {
		maxPages = 25
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:    os.Getenv("GO_ENV"),
		LOG_LEVEL: withDefault(os.Getenv("LOG_LEVEL"), "info"),
		LOG_FILE:  os.Getenv("LOG_FILE"),
		PORT:      port,
		// Scraping
		SOURCES_FILE:         withDefault(os.Getenv("SOURCES_FILE"), "sources.yaml"),
		REQUEST_DELAY:        delay,
		RUN_TIMEOUT:          runTimeout,
		SCHEDULE:             withDefault(os.Getenv("SCHEDULE"), "0 0 3 * * *"),
		MAX_PAGES_PER_BUCKET: maxPages,
		DENY_HOSTS:           splitList(os.Getenv("DENY_HOSTS")),
		// Record store
		RECORD_STORE: withDefault(os.Getenv("RECORD_STORE"), RecordStorePostgres),
		DATABASE_URL: os.Getenv("DATABASE_URL"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  withDefault(os.Getenv("DB_SSL_MODE"), "disable"),
		SQLITE_PATH:  withDefault(os.Getenv("SQLITE_PATH"), "ktu_notes.db"),
		// Content store
		CONTENT_STORE:          withDefault(os.Getenv("CONTENT_STORE"), ContentStoreSpaces),
		DO_SPACES_ACCESS_KEY:   os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY:   os.Getenv("DO_SPACES_SECRET_KEY"),
		DO_SPACES_BUCKET:       os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:       withDefault(os.Getenv("DO_SPACES_REGION"), "blr1"),
		DO_SPACES_ENDPOINT:     os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_CDN_ENDPOINT: os.Getenv("DO_SPACES_CDN_ENDPOINT"),
		GCS_BUCKET:             os.Getenv("GCS_BUCKET"),
		GCS_PUBLIC_BASE_URL:    os.Getenv("GCS_PUBLIC_BASE_URL"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// NATS
		NATS_URL:     os.Getenv("NATS_URL"),
		NATS_SUBJECT: os.Getenv("NATS_SUBJECT"),
	}

	switch envVariables.RECORD_STORE {
	case RecordStorePostgres, RecordStoreSQLite:
	default:
		return nil, fmt.Errorf("unknown RECORD_STORE %q", envVariables.RECORD_STORE)
	}

	switch envVariables.CONTENT_STORE {
	case ContentStoreSpaces, ContentStoreGCS:
	default:
		return nil, fmt.Errorf("unknown CONTENT_STORE %q", envVariables.CONTENT_STORE)
	}

	return envVariables, nil
}

// PostgresDSN returns DATABASE_URL or builds a DSN from the DB_* variables
func (e *EnviornmentVariable) PostgresDSN() string {
	if e.DATABASE_URL != "" {
		return e.DATABASE_URL
	}
	if e.DB_NAME == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		e.DB_HOST, e.DB_USER_NAME, e.DB_PASSWORD, e.DB_NAME, e.DB_PORT, e.DB_SSL_MODE)
}

// DryRunReason names the missing credential that forces dry-run, or returns ""
// when both the record store and the content store are configured
func (e *EnviornmentVariable) DryRunReason() string {
	if e.RECORD_STORE == RecordStorePostgres && e.PostgresDSN() == "" {
		return "DATABASE_URL / DB_NAME not set"
	}

	switch e.CONTENT_STORE {
	case ContentStoreGCS:
		if e.GCS_BUCKET == "" {
			return "GCS_BUCKET not set"
		}
	default:
		if e.DO_SPACES_ACCESS_KEY == "" {
			return "DO_SPACES_ACCESS_KEY not set"
		}
	}
	return ""
}

// PublicBaseURL is the prefix dry-run stores use for would-be URLs
func (e *EnviornmentVariable) PublicBaseURL() string {
	if e.CONTENT_STORE == ContentStoreGCS {
		if e.GCS_PUBLIC_BASE_URL != "" {
			return e.GCS_PUBLIC_BASE_URL
		}
		if e.GCS_BUCKET != "" {
			return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + e.GCS_BUCKET}).String()
		}
	}
	if e.DO_SPACES_CDN_ENDPOINT != "" {
		return e.DO_SPACES_CDN_ENDPOINT
	}
	return "https://dry-run.invalid"
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	// Plain numbers are seconds
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// splitList parses a comma separated list, dropping blanks
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func withDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
