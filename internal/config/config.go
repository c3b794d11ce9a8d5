package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	StoreMemory       = "memory"
	StoreRedis        = "redis"
	StoreCloudStorage = "cloud-storage"
)

// News providers
const (
	ProviderNewsAPI = "newsapi"
	ProviderRSS     = "rss"
)

const (
	newsKeyFile   = "news-api-key.txt"
	geminiKeyFile = "gemini-api-key.txt"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string `json:"port"`
	Host string `json:"host"`

	// News search settings
	NewsAPIKey       string `json:"-"` // Don't expose in JSON
	NewsAPIBaseURL   string `json:"news_api_base_url"`
	NewsLanguage     string `json:"news_language"`
	NewsProvider     string `json:"news_provider"`
	NewsRSSSearchURL string `json:"news_rss_search_url"`

	// Gemini API settings
	GeminiAPIKey  string `json:"-"` // Don't expose in JSON
	GeminiModel   string `json:"gemini_model"`
	GeminiBaseURL string `json:"gemini_base_url"`

	// Session store settings
	SessionStore         string `json:"session_store"` // "memory", "redis" or "cloud-storage"
	SessionTTLHours      int    `json:"session_ttl_hours"`
	SessionBucket        string `json:"session_bucket"`
	RedisURL             string `json:"-"`
	SessionPruneSchedule string `json:"session_prune_schedule"`

	// Extraction cache
	ExtractCacheSize       int `json:"extract_cache_size"`
	ExtractCacheTTLMinutes int `json:"extract_cache_ttl_minutes"`

	// Rate limiting (0 disables)
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`
}

// Load reads configuration from environment variables and .env file.
// Missing API keys are not an error: the affected endpoints report it instead.
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	keyDir := getEnvOrDefault("KEY_FILE_DIR", ".")

	config := &Config{
		Port:                   getEnvOrDefault("PORT", "3084"),
		Host:                   getEnvOrDefault("HOST", "0.0.0.0"),
		NewsAPIKey:             resolveSecret("NEWS_API_KEY", filepath.Join(keyDir, newsKeyFile)),
		NewsAPIBaseURL:         getEnvOrDefault("NEWS_API_BASE_URL", "https://newsapi.org"),
		NewsLanguage:           getEnvOrDefault("NEWS_LANGUAGE", "ko"),
		NewsProvider:           getEnvOrDefault("NEWS_PROVIDER", ProviderNewsAPI),
		NewsRSSSearchURL:       getEnvOrDefault("NEWS_RSS_SEARCH_URL", "https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko"),
		GeminiAPIKey:           resolveSecret("GEMINI_API_KEY", filepath.Join(keyDir, geminiKeyFile)),
		GeminiModel:            getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:          getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		SessionStore:           getEnvOrDefault("SESSION_STORE", StoreMemory),
		SessionTTLHours:        getEnvOrDefaultInt("SESSION_TTL_HOURS", 24),
		SessionBucket:          getEnvOrDefault("SESSION_BUCKET", ""),
		RedisURL:               getEnvOrDefault("REDIS_URL", ""),
		SessionPruneSchedule:   getEnvOrDefault("SESSION_PRUNE_SCHEDULE", "@every 10m"),
		ExtractCacheSize:       getEnvOrDefaultInt("EXTRACT_CACHE_SIZE", 256),
		ExtractCacheTTLMinutes: getEnvOrDefaultInt("EXTRACT_CACHE_TTL_MINUTES", 30),
		RateLimitRPS:           getEnvOrDefaultFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:         getEnvOrDefaultInt("RATE_LIMIT_BURST", 10),
	}

	return config, config.Validate()
}

// Validate checks structural settings. API keys are deliberately not checked.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return &ConfigError{Field: "PORT", Message: "must be a number"}
	}
	switch c.NewsProvider {
	case ProviderNewsAPI:
	case ProviderRSS:
		if !strings.Contains(c.NewsRSSSearchURL, "%s") {
			return &ConfigError{Field: "NEWS_RSS_SEARCH_URL", Message: "must contain %s for the keyword"}
		}
	default:
		return &ConfigError{Field: "NEWS_PROVIDER", Message: "unsupported provider: " + c.NewsProvider}
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return &ConfigError{Field: "REDIS_URL", Message: "required when SESSION_STORE=redis"}
		}
	case StoreCloudStorage:
		if c.SessionBucket == "" {
			return &ConfigError{Field: "SESSION_BUCKET", Message: "required when SESSION_STORE=cloud-storage"}
		}
	default:
		return &ConfigError{Field: "SESSION_STORE", Message: "unsupported store: " + c.SessionStore}
	}
	if c.SessionTTLHours <= 0 {
		return &ConfigError{Field: "SESSION_TTL_HOURS", Message: "must be positive"}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// SessionTTL returns how long an idle session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// ExtractCacheTTL returns how long extracted page text is reused.
func (c *Config) ExtractCacheTTL() time.Duration {
	return time.Duration(c.ExtractCacheTTLMinutes) * time.Minute
}

// HasNewsKey reports whether a news search credential is configured.
func (c *Config) HasNewsKey() bool {
	return c.NewsAPIKey != ""
}

// HasGeminiKey reports whether a generation credential is configured.
func (c *Config) HasGeminiKey() bool {
	return c.GeminiAPIKey != ""
}

// resolveSecret reads an environment variable and falls back to a local key file.
func resolveSecret(envKey, path string) string {
	if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
		return value
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
