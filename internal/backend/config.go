package backend

import (
	"fmt"

	"aptprice/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		BaseURL:  appConfig.RTMSBaseURL,
		PageSize: appConfig.RTMSPageSize,
		Timeout:  appConfig.RTMSTimeout,

		FixtureDir: appConfig.FixtureDir,

		CacheTTL:             appConfig.CacheTTL,
		CacheMaxEntries:      appConfig.CacheMaxEntries,
		CacheCleanupInterval: appConfig.CacheCleanupInterval,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case FixtureBackend:
		if c.FixtureDir == "" {
			return fmt.Errorf("fixture directory is required for fixture backend")
		}
	case RTMSBackend:
		// Base URL and page size fall back to client defaults
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.CacheTTL)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RTMSBackend, FixtureBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
