package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "DHARMA"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultStorageDriver  = StorageDriverFile
	defaultStoragePath    = "data/content.json"
	defaultDatabasePath   = "dharma.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultAdminPassword  = "admin"
	defaultCookieName     = "admin_auth"
	defaultCookieTTLHours = 24 * 7
	defaultMetricsEnabled = true

	// StorageDriverFile keeps the content document in one JSON file.
	StorageDriverFile = "file"
	// StorageDriverSQLite keeps the content document in one SQLite row.
	StorageDriverSQLite = "sqlite"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	StorageDriver  string
	StoragePath    string
	DatabasePath   string
	LogLevel       string
	LogFormat      string
	AdminPassword  string
	SigningSecret  string
	CookieName     string
	CookieSecure   bool
	CookieTTL      time.Duration
	AllowedOrigins []string
	MetricsEnabled bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	// ADMIN_PASSWORD is honoured without the prefix as well.
	_ = configViper.BindEnv("admin.password", envPrefix+"_ADMIN_PASSWORD", "ADMIN_PASSWORD")

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("storage.path", defaultStoragePath)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("admin.password", defaultAdminPassword)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("auth.cookie_ttl_hours", defaultCookieTTLHours)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("metrics.enabled", defaultMetricsEnabled)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		StorageDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		StoragePath:    configViper.GetString("storage.path"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		LogFormat:      configViper.GetString("log.format"),
		AdminPassword:  configViper.GetString("admin.password"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		CookieName:     configViper.GetString("auth.cookie_name"),
		CookieSecure:   configViper.GetBool("auth.cookie_secure"),
		CookieTTL:      time.Duration(configViper.GetInt("auth.cookie_ttl_hours")) * time.Hour,
		AllowedOrigins: splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		MetricsEnabled: configViper.GetBool("metrics.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.StorageDriver {
	case StorageDriverFile:
		if strings.TrimSpace(c.StoragePath) == "" {
			return fmt.Errorf("storage.path is required")
		}
	case StorageDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageDriverFile, StorageDriverSQLite, c.StorageDriver)
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin.password is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.CookieTTL <= 0 {
		return fmt.Errorf("auth.cookie_ttl_hours must be positive")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
