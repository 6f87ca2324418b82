// Package config handles loading and parsing of configuration for the
// application: environment settings and the entity registry file.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all environment-driven settings. The .env file is loaded by
// main before this runs.
type Config struct {
	SourceBaseURL string
	SourceAPIKey  string
	StagingBucket string
	BQProject     string
	BQDataset     string
	MetricsPort   string
	HTTPTimeout   time.Duration
	PageSize      int
	AuditUser     string
}

// LoadConfig loads application settings from environment variables.
func LoadConfig() (*Config, error) {
	baseURL := os.Getenv("EDP_SOURCE_BASE_URL")
	if baseURL == "" {
		return nil, errors.New("EDP_SOURCE_BASE_URL environment variable not set")
	}

	bucket := os.Getenv("EDP_STAGING_BUCKET")
	if bucket == "" {
		return nil, errors.New("EDP_STAGING_BUCKET environment variable not set")
	}

	project := os.Getenv("EDP_BQ_PROJECT")
	if project == "" {
		return nil, errors.New("EDP_BQ_PROJECT environment variable not set")
	}

	dataset := os.Getenv("EDP_BQ_DATASET")
	if dataset == "" {
		return nil, errors.New("EDP_BQ_DATASET environment variable not set")
	}

	return &Config{
		SourceBaseURL: baseURL,
		SourceAPIKey:  os.Getenv("EDP_SOURCE_API_KEY"),
		StagingBucket: bucket,
		BQProject:     project,
		BQDataset:     dataset,
		MetricsPort:   getEnv("EDP_METRICS_PORT", "9090"),
		HTTPTimeout:   getDuration("EDP_HTTP_TIMEOUT", 30*time.Second),
		PageSize:      getInt("EDP_PAGE_SIZE", 30),
		AuditUser:     getEnv("EDP_AUDIT_USER", "edp"),
	}, nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if t, err := time.ParseDuration(v); err == nil && t > 0 {
			return t
		}
	}
	return d
}
