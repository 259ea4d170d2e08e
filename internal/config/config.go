package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Config holds the configuration for the TraceLens server and its dependencies.
type Config struct {
	// Listen is the address the TraceLens server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the base URL of the TraceLens server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// RefreshSchedule is the cron schedule for warming the service list cache
	// (e.g., "*/5 * * * *" for every 5 minutes).
	RefreshSchedule string `yaml:"refresh_schedule" mapstructure:"refresh_schedule"`
	// Gzip enables gzip compression for API responses.
	Gzip bool `yaml:"gzip" mapstructure:"gzip"`
	// Query holds the configuration for the trace query backend.
	Query *QueryConfig `yaml:"query" mapstructure:"query"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// QueryConfig holds the configuration for the trace query backend.
type QueryConfig struct {
	// URL is the base URL of the Jaeger-compatible query service.
	URL string `yaml:"url" mapstructure:"url"`
	// TimeoutSeconds is the request timeout for query calls.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	// LookbackHours is the default search window when no time range is given.
	LookbackHours int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	// SearchLimit is the default maximum number of traces per search.
	SearchLimit int `yaml:"search_limit" mapstructure:"search_limit"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTLSeconds is how long cached backend responses stay valid.
	TTLSeconds int `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads the configuration from the specified path and returns a Config
// struct. If path is empty, it searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	bindNestedEnv(v)
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRACELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tracelens")
		v.AddConfigPath("/etc/tracelens")
	}

	if err := v.ReadInConfig(); err != nil {
		// Running on defaults and env vars alone is fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3003")
	v.SetDefault("server_url", "http://localhost:3003")
	v.SetDefault("log_level", "info")
	v.SetDefault("refresh_schedule", "*/5 * * * *")
	v.SetDefault("gzip", true)

	v.SetDefault("query.url", "http://localhost:16686")
	v.SetDefault("query.timeout_seconds", 30)
	v.SetDefault("query.lookback_hours", 1)
	v.SetDefault("query.search_limit", 20)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_seconds", 300)

	v.SetDefault("database.path", "./data/tracelens.db")
}

// The auto env function from viper only binds nested structs that already
// have a value, so the pointer sections need explicit bindings.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("query.url", "TRACELENS_QUERY_URL")
	v.MustBindEnv("query.timeout_seconds", "TRACELENS_QUERY_TIMEOUT_SECONDS")
	v.MustBindEnv("query.lookback_hours", "TRACELENS_QUERY_LOOKBACK_HOURS")
	v.MustBindEnv("query.search_limit", "TRACELENS_QUERY_SEARCH_LIMIT")

	v.MustBindEnv("cache.type", "TRACELENS_CACHE_TYPE")
	v.MustBindEnv("cache.redis_url", "TRACELENS_CACHE_REDIS_URL")
	v.MustBindEnv("cache.ttl_seconds", "TRACELENS_CACHE_TTL_SECONDS")

	v.MustBindEnv("database.path", "TRACELENS_DATABASE_PATH")
}

// sanitizeConfig normalizes user-supplied values.
func sanitizeConfig(c *Config) {
	if c.Query != nil {
		c.Query.URL = strings.TrimSuffix(strings.TrimSpace(c.Query.URL), "/")
	}
	c.ServerURL = strings.TrimSuffix(strings.TrimSpace(c.ServerURL), "/")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing tracelens config")
	}

	if c.Query == nil || c.Query.URL == "" {
		return fmt.Errorf("query backend URL is required")
	}
	if c.Query.SearchLimit <= 0 {
		return fmt.Errorf("query search limit must be greater than 0")
	}
	if c.Query.LookbackHours <= 0 {
		return fmt.Errorf("query lookback must be greater than 0")
	}

	if c.RefreshSchedule == "" {
		return fmt.Errorf("refresh schedule is required")
	}
	// Basic validation for cron format (5 fields)
	cronFields := strings.Fields(c.RefreshSchedule)
	if len(cronFields) != 5 {
		return fmt.Errorf("refresh schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type:       CacheTypeMemory,
			TTLSeconds: 300,
		}
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	return nil
}
