package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultRTMSBaseURL = "http://apis.data.go.kr/1613000/RTMSDataSvcAptTradeDev/getRTMSDataSvcAptTradeDev"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string
	FixtureDir  string

	// RTMS API
	RTMSBaseURL    string
	RTMSServiceKey string
	RTMSPageSize   int
	RTMSTimeout    time.Duration

	// Fetch memoization
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	// History aggregation
	HistoryMonths int
	HistoryPause  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		DataBackend: getEnv("DATA_BACKEND", "rtms"),
		FixtureDir:  getEnv("FIXTURE_DIR", "./testdata/fixtures"),

		RTMSBaseURL:    getEnv("RTMS_BASE_URL", DefaultRTMSBaseURL),
		RTMSServiceKey: strings.TrimSpace(getEnv("RTMS_SERVICE_KEY", "")),
		RTMSPageSize:   getEnvInt("RTMS_PAGE_SIZE", 1000),
		RTMSTimeout:    getEnvDuration("RTMS_TIMEOUT", 30*time.Second),

		CacheTTL:             getEnvDuration("CACHE_TTL", time.Hour),
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 256),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),

		HistoryMonths: getEnvInt("HISTORY_MONTHS", 36),
		HistoryPause:  getEnvDuration("HISTORY_PAUSE", 200*time.Millisecond),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate data backend
	validBackends := []string{"rtms", "fixture"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "fixture" {
		if c.FixtureDir == "" {
			errors = append(errors, "fixture directory cannot be empty when using fixture backend")
		} else if info, err := os.Stat(c.FixtureDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("fixture directory does not exist: %s", c.FixtureDir))
		}
	}

	if c.DataBackend == "rtms" {
		if parsedURL, err := url.Parse(c.RTMSBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid RTMS base URL '%s': %v", c.RTMSBaseURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid RTMS base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		} else if parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid RTMS base URL '%s': missing host", c.RTMSBaseURL))
		}
	}

	if c.RTMSPageSize < 1 || c.RTMSPageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid RTMS page size %d: must be between 1 and 1000", c.RTMSPageSize))
	}

	if c.RTMSTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid RTMS timeout %v: must be at least 1 second", c.RTMSTimeout))
	} else if c.RTMSTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid RTMS timeout %v: must be at most 2 minutes", c.RTMSTimeout))
	}

	// Memoization must expire; the remote data can be amended
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	if c.CacheMaxEntries < 1 || c.CacheMaxEntries > 10000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be between 1 and 10000", c.CacheMaxEntries))
	}

	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	if c.HistoryMonths < 1 || c.HistoryMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid history months %d: must be between 1 and 120", c.HistoryMonths))
	}

	if c.HistoryPause < 0 || c.HistoryPause > 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid history pause %v: must be between 0 and 10 seconds", c.HistoryPause))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of text, json, tint", c.LogFormat))
	}

	// Return combined errors
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
