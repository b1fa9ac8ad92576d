package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"signal-bot/internal/access"
)

const (
	SignalSourceIndicators = "indicators"
	SignalSourceRandom     = "random"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPAddr         string
	CORSOrigins      []string

	AccessCodesFile     string
	AccessCodes         []string
	AccessCodesRedisKey string

	AssetsDir string

	JournalRetentionDays int

	ShortExpiryDelaySecs int
	CountdownLeadSecs    int

	SignalSource          string
	MarketDataURL         string
	MarketDataTimeoutSecs int
	AnalysisTimeoutSecs   int

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		OTLPEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, Telegram transport disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, delivery journal disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, access codes come from file and env only")
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	cfg.AccessCodesFile = strings.TrimSpace(os.Getenv("ACCESS_CODES_FILE"))
	if cfg.AccessCodesFile == "" {
		cfg.AccessCodesFile = "users.json"
	}
	cfg.AccessCodes = splitList(os.Getenv("ACCESS_CODES"))

	cfg.AccessCodesRedisKey = strings.TrimSpace(os.Getenv("ACCESS_CODES_REDIS_KEY"))
	if cfg.AccessCodesRedisKey == "" {
		cfg.AccessCodesRedisKey = access.DefaultRedisKey
	}

	cfg.AssetsDir = strings.TrimSpace(os.Getenv("ASSETS_DIR"))
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}

	// 0 keeps journal rows forever.
	cfg.JournalRetentionDays = nonNegativeInt("JOURNAL_RETENTION_DAYS", 30)

	cfg.ShortExpiryDelaySecs = positiveInt("SHORT_EXPIRY_DELAY_SECS", 3)
	cfg.CountdownLeadSecs = positiveInt("COUNTDOWN_LEAD_SECS", 60)

	cfg.SignalSource = strings.ToLower(strings.TrimSpace(os.Getenv("SIGNAL_SOURCE")))
	if cfg.SignalSource == "" {
		cfg.SignalSource = SignalSourceIndicators
	}
	if cfg.SignalSource != SignalSourceIndicators && cfg.SignalSource != SignalSourceRandom {
		log.Printf("Warning: unsupported SIGNAL_SOURCE=%q, defaulting to %s", cfg.SignalSource, SignalSourceIndicators)
		cfg.SignalSource = SignalSourceIndicators
	}

	cfg.MarketDataURL = strings.TrimSpace(os.Getenv("MARKET_DATA_URL"))
	if cfg.MarketDataURL == "" {
		cfg.MarketDataURL = "https://query1.finance.yahoo.com"
	}
	cfg.MarketDataTimeoutSecs = positiveInt("MARKET_DATA_TIMEOUT_SECS", 10)
	cfg.AnalysisTimeoutSecs = positiveInt("ANALYSIS_TIMEOUT_SECS", 15)

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	return cfg
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func nonNegativeInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
