package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	RedisURL    string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string
	// Provider credentials. Each adapter fails fast at construction if
	// its key is missing; absent keys only disable that provider.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	TogetherAPIKey  string
	TogetherBaseURL string
	ModelsLabAPIKey string
	// Billing webhook
	StripeWebhookSecret string
	// Media mirror
	MediaDir string
	// LogDir enables file logging when set; empty logs to stdout only.
	LogDir      string
	LogMaxFiles int
	// Tier table override (empty = embedded default)
	TierTablePath string
	// Request behavior
	RequestTimeout  time.Duration
	PersistPartials bool
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWKSURL:     getEnv("JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		TogetherAPIKey:  getEnv("TOGETHER_API_KEY", ""),
		TogetherBaseURL: getEnv("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
		ModelsLabAPIKey: getEnv("MODELSLAB_API_KEY", ""),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		MediaDir:      getEnv("MEDIA_DIR", "./media"),
		LogDir:        getEnv("LOG_DIR", ""),
		LogMaxFiles:   getInt("LOG_MAX_FILES", 10),
		TierTablePath: getEnv("TIER_TABLE_PATH", ""),

		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 60*time.Second),
		PersistPartials: getEnv("PERSIST_PARTIAL_STREAMS", "false") == "true",

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
