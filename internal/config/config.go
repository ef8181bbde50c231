package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "WalletDesk"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultCurrencies      = "USD,EUR,GBP,CAD"
	defaultProcessorTO     = 15 * time.Second
	defaultTokenMargin     = 60 * time.Second
	defaultRepairRateLimit = 5
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	AutoMigrate     bool
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	Currencies      []string
	RepairRateLimit int
	Processor       ProcessorConfig
}

// ProcessorConfig holds the settings of the external payment processor integration.
type ProcessorConfig struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	SigningSecret string
	Timeout       time.Duration
	TokenMargin   time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		Currencies:      splitCurrencies(getEnv("PHANTOM_CURRENCIES", defaultCurrencies)),
		RepairRateLimit: defaultRepairRateLimit,
		Processor: ProcessorConfig{
			BaseURL:       strings.TrimRight(os.Getenv("PROCESSOR_BASE_URL"), "/"),
			TokenURL:      os.Getenv("PROCESSOR_TOKEN_URL"),
			ClientID:      os.Getenv("PROCESSOR_CLIENT_ID"),
			ClientSecret:  os.Getenv("PROCESSOR_CLIENT_SECRET"),
			SigningSecret: os.Getenv("PROCESSOR_SIGNING_SECRET"),
			Timeout:       defaultProcessorTO,
			TokenMargin:   defaultTokenMargin,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Processor.Timeout, err = durationFromEnv("PROCESSOR_TIMEOUT", cfg.Processor.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Processor.TokenMargin, err = durationFromEnv("PROCESSOR_TOKEN_MARGIN", cfg.Processor.TokenMargin); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = b
	}

	if v := os.Getenv("REPAIR_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REPAIR_RATE_LIMIT: %w", err)
		}
		cfg.RepairRateLimit = n
	}

	if cfg.Processor.TokenURL == "" && cfg.Processor.BaseURL != "" {
		cfg.Processor.TokenURL = cfg.Processor.BaseURL + "/oauth/token"
	}

	if len(cfg.Currencies) == 0 {
		return Config{}, fmt.Errorf("PHANTOM_CURRENCIES must list at least one currency")
	}

	if !cfg.IsDevelopment() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service may run on in-memory stores.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// durationFromEnv honours both KEY_SECONDS (integer) and KEY (Go duration) forms,
// the seconds form taking precedence.
func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	secondsKey := key + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitCurrencies(v string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(v, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
