// Package config provides environment configuration for the gateway.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Datastore
	DatabasePath string

	// NATS settings (events are disabled when NATSURL is empty)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Completion backend
	BackendBaseURL       string
	BackendAPIKey        string
	DefaultModel         string
	AllowedModels        []string
	ProbeTimeout         time.Duration
	StreamTimeout        time.Duration
	StreamRetries        int
	StreamRetryBaseDelay time.Duration

	// SEO data provider
	ProviderBaseURL  string
	ProviderLogin    string
	ProviderPassword string
	ProviderTimeout  time.Duration

	// Tools
	ToolTimeout     time.Duration
	ToolConcurrency int

	// Per-caller throttle
	ThrottleRequests      int
	ThrottleWindow        time.Duration
	ThrottleSweepInterval time.Duration

	// Per-IP guard in front of the API
	IPRateLimitRequests int
	IPRateLimitWindow   time.Duration

	// Weekly quota overrides, keyed by tier name
	QuotaLimits map[string]int

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// quotaTiers lists the tiers whose weekly ceiling may be overridden.
var quotaTiers = []string{"free", "basic", "business", "white_label", "super_reseller"}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 5*time.Minute),
		AllowedOrigins:     getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://localhost:*", "chrome-extension://*"}),

		// Datastore
		DatabasePath: getEnv("DATABASE_PATH", "gateway.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Completion backend
		BackendBaseURL:       getEnv("BACKEND_BASE_URL", "https://api.openai.com/v1"),
		BackendAPIKey:        getEnv("BACKEND_API_KEY", ""),
		DefaultModel:         getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		AllowedModels:        getListEnv("ALLOWED_MODELS", []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1"}),
		ProbeTimeout:         getDurationEnv("BACKEND_PROBE_TIMEOUT", 60*time.Second),
		StreamTimeout:        getDurationEnv("BACKEND_STREAM_TIMEOUT", 3*time.Minute),
		StreamRetries:        getIntEnv("BACKEND_STREAM_RETRIES", 2),
		StreamRetryBaseDelay: getDurationEnv("BACKEND_STREAM_RETRY_DELAY", time.Second),

		// SEO data provider
		ProviderBaseURL:  getEnv("SEO_PROVIDER_BASE_URL", "https://api.dataforseo.com/v3"),
		ProviderLogin:    getEnv("SEO_PROVIDER_LOGIN", ""),
		ProviderPassword: getEnv("SEO_PROVIDER_PASSWORD", ""),
		ProviderTimeout:  getDurationEnv("SEO_PROVIDER_TIMEOUT", 25*time.Second),

		// Tools
		ToolTimeout:     getDurationEnv("TOOL_TIMEOUT", 25*time.Second),
		ToolConcurrency: getIntEnv("TOOL_CONCURRENCY", 4),

		// Throttle
		ThrottleRequests:      getIntEnv("THROTTLE_REQUESTS", 30),
		ThrottleWindow:        getDurationEnv("THROTTLE_WINDOW", time.Minute),
		ThrottleSweepInterval: getDurationEnv("THROTTLE_SWEEP_INTERVAL", 5*time.Minute),

		// IP guard
		IPRateLimitRequests: getIntEnv("IP_RATE_LIMIT_REQUESTS", 120),
		IPRateLimitWindow:   getDurationEnv("IP_RATE_LIMIT_WINDOW", time.Minute),

		QuotaLimits: getQuotaLimits(),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// getQuotaLimits reads QUOTA_LIMIT_<TIER> overrides. Tiers without an
// override are absent from the map.
func getQuotaLimits() map[string]int {
	limits := make(map[string]int)
	for _, tier := range quotaTiers {
		key := "QUOTA_LIMIT_" + strings.ToUpper(tier)
		if v := getIntEnv(key, -1); v >= 0 {
			limits[tier] = v
		}
	}
	return limits
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
