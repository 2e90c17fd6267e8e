package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	AuthBaseURL string
	AuthAPIKey  string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	FalAPIKey         string
	FalBaseURL        string
	FalQueueBaseURL   string
	ProviderTimeout   time.Duration

	CreditsEnforced bool

	StorageBaseURL    string
	StorageServiceKey string
	InputsBucket      string
	InputsTTL         time.Duration
	SweeperInterval   time.Duration

	AllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AuthBaseURL:       os.Getenv("AUTH_BASE_URL"),
		AuthAPIKey:        os.Getenv("AUTH_ANON_KEY"),
		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		FalAPIKey:         os.Getenv("FAL_KEY"),
		FalBaseURL:        getEnv("FAL_BASE_URL", "https://fal.run"),
		FalQueueBaseURL:   getEnv("FAL_QUEUE_BASE_URL", "https://queue.fal.run"),
		ProviderTimeout:   time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)),
		CreditsEnforced:   getEnvBool("CREDITS_ENFORCED", true),
		StorageBaseURL:    os.Getenv("STORAGE_BASE_URL"),
		StorageServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
		InputsBucket:      getEnv("INPUTS_BUCKET", "inputs"),
		InputsTTL:         time.Hour * time.Duration(getEnvInt("INPUTS_TTL_HOURS", 72)),
		SweeperInterval:   time.Minute * time.Duration(getEnvInt("SWEEPER_INTERVAL_MINUTES", 60)),
		AllowedOrigins:    splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AuthBaseURL == "" {
		return nil, fmt.Errorf("AUTH_BASE_URL is required")
	}

	if cfg.ReplicateAPIToken == "" && cfg.FalAPIKey == "" {
		return nil, fmt.Errorf("at least one provider token is required (REPLICATE_API_TOKEN or FAL_KEY)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
