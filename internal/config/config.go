package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultFallbackCategories is used when the API cannot list categories.
var DefaultFallbackCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Utilities",
	"Healthcare",
	"Groceries",
	"Splurge",
	"Other",
}

type Config struct {
	// HTTP Server
	Port string

	// Expense tracker API
	BackendURL     string
	BackendTimeout time.Duration

	// Import behaviour
	ImportTimezone     string
	FallbackCategories []string
	CategoryCacheTTL   time.Duration
	ConfirmResetDelay  time.Duration
	UploadMaxBytes     int64

	// Sessions
	SessionTTL time.Duration
	SessionMax int

	// Listing
	ListingPageSize int

	// AMQP (optional import-confirmed events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8082"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8080"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),

		ImportTimezone:     getEnv("IMPORT_TIMEZONE", "UTC"),
		FallbackCategories: getEnvList("FALLBACK_CATEGORIES", DefaultFallbackCategories),
		CategoryCacheTTL:   getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),
		ConfirmResetDelay:  getEnvDuration("CONFIRM_RESET_DELAY", 2*time.Second),
		UploadMaxBytes:     int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),

		SessionTTL: getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionMax: getEnvInt("SESSION_MAX", 500),

		ListingPageSize: getEnvInt("LISTING_PAGE_SIZE", 20),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "importdesk"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "import_confirmed"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves ImportTimezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ImportTimezone)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.BackendURL == "" {
		errors = append(errors, "backend URL cannot be empty")
	} else if u, err := url.Parse(c.BackendURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid backend URL '%s': %v", c.BackendURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid backend URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.BackendTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be at least 1 second", c.BackendTimeout))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid import timezone '%s': %v", c.ImportTimezone, err))
	}

	if len(c.FallbackCategories) == 0 {
		errors = append(errors, "fallback categories cannot be empty")
	}

	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
	}
	if c.ConfirmResetDelay < 0 || c.ConfirmResetDelay > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid confirm reset delay %v: must be between 0 and 1 minute", c.ConfirmResetDelay))
	}
	if c.UploadMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at least 1024 bytes", c.UploadMaxBytes))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session limit %d: must be at least 1", c.SessionMax))
	}

	if c.ListingPageSize < 1 || c.ListingPageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid listing page size %d: must be between 1 and 100", c.ListingPageSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
