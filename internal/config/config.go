package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the UM-SAFE chat service.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Model     ModelConfig
	Translate TranslateConfig
	Alerts    AlertConfig
	Retention RetentionConfig
}

type DatabaseConfig struct {
	// URL is the PostgreSQL DSN. Empty selects the in-memory store.
	URL            string
	MaxConnections int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// IdentityURL is the base URL of the external identity service that
	// exchanges bearer tokens for user identities.
	IdentityURL string
	// IdentityAPIKey is the service-level key sent alongside user tokens.
	IdentityAPIKey string
	// IdentityTimeout bounds the token-exchange call.
	IdentityTimeout time.Duration
	// APIKeys are static development keys accepted as X-API-Key.
	APIKeys []string
}

type ModelConfig struct {
	// Kind selects the model backend: "groq", "openai", or "ollama".
	Kind string
	// Endpoint overrides the backend's default base URL.
	Endpoint string
	APIKey   string
	Model    string
	// Timeout bounds the full streaming completion call.
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type TranslateConfig struct {
	// ProviderOrder is the comma-separated fallback order, e.g.
	// "mymemory,libretranslate,google".
	ProviderOrder []string
	LibreURL      string
	GoogleAPIKey  string
	DeepLAPIKey   string
	Timeout       time.Duration
	CacheSize     int
}

type AlertConfig struct {
	// WebhookURL receives signed incident alert events. Empty disables alerts.
	WebhookURL string
	// WebhookSecret signs alert payloads (HMAC-SHA256).
	WebhookSecret string
}

type RetentionConfig struct {
	// Enabled turns on the background transcript janitor.
	Enabled bool
	// MessageDays is how long chat transcripts are kept.
	MessageDays int
	// Interval is how often the janitor sweeps.
	Interval time.Duration
	// ArchivePath, when set, archives transcripts as JSONL there before
	// purging. Empty means purge without archiving.
	ArchivePath string
	// CompressArchives gzips archive files.
	CompressArchives bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("UMSAFE_PORT", 8080),
		Version: envStr("UMSAFE_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "umsafe-chat"),
		},
		Auth: AuthConfig{
			IdentityURL:     envStr("UMSAFE_IDENTITY_URL", ""),
			IdentityAPIKey:  envStr("UMSAFE_IDENTITY_API_KEY", ""),
			IdentityTimeout: envDur("UMSAFE_IDENTITY_TIMEOUT", 10*time.Second),
			APIKeys:         envList("UMSAFE_API_KEYS"),
		},
		Model: ModelConfig{
			Kind:        envStr("UMSAFE_MODEL_KIND", "groq"),
			Endpoint:    envStr("UMSAFE_MODEL_ENDPOINT", ""),
			APIKey:      envStr("UMSAFE_MODEL_API_KEY", ""),
			Model:       envStr("UMSAFE_MODEL", "llama-3.1-70b-versatile"),
			Timeout:     envDur("UMSAFE_MODEL_TIMEOUT", 120*time.Second),
			Temperature: envFloat("UMSAFE_MODEL_TEMPERATURE", 0.7),
			MaxTokens:   envInt("UMSAFE_MODEL_MAX_TOKENS", 2048),
		},
		Translate: TranslateConfig{
			ProviderOrder: envListDefault("UMSAFE_TRANSLATE_PROVIDER_ORDER", []string{"mymemory", "libretranslate", "google"}),
			LibreURL:      envStr("UMSAFE_LIBRETRANSLATE_URL", ""),
			GoogleAPIKey:  envStr("UMSAFE_GOOGLE_TRANSLATE_API_KEY", ""),
			DeepLAPIKey:   envStr("UMSAFE_DEEPL_API_KEY", ""),
			Timeout:       envDur("UMSAFE_TRANSLATE_TIMEOUT", 10*time.Second),
			CacheSize:     envInt("UMSAFE_TRANSLATE_CACHE_SIZE", 4096),
		},
		Alerts: AlertConfig{
			WebhookURL:    envStr("UMSAFE_ALERT_WEBHOOK_URL", ""),
			WebhookSecret: envStr("UMSAFE_ALERT_WEBHOOK_SECRET", ""),
		},
		Retention: RetentionConfig{
			Enabled:          envBool("UMSAFE_RETENTION_ENABLED", false),
			MessageDays:      envInt("UMSAFE_RETENTION_MESSAGE_DAYS", 90),
			Interval:         envDur("UMSAFE_RETENTION_INTERVAL", 6*time.Hour),
			ArchivePath:      envStr("UMSAFE_RETENTION_ARCHIVE_PATH", ""),
			CompressArchives: envBool("UMSAFE_RETENTION_COMPRESS", true),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	return envListDefault(key, nil)
}

func envListDefault(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
