package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string

	// Upbit
	UpbitAccessKey string
	UpbitSecretKey string
	Symbols        []string
	UseMockFeed    bool

	// Execution
	PaperTrading        bool
	PaperInitialBalance float64
	OrderTimeout        time.Duration

	// Risk overrides (zero means keep the persisted/default value)
	FeeRate float64

	// Coordinator
	SweepInterval time.Duration

	// Strategies
	StrategiesFile string

	// Database
	DBPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		UpbitAccessKey:      os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecretKey:      os.Getenv("UPBIT_SECRET_KEY"),
		Symbols:             splitAndTrim(getEnv("SYMBOLS", "KRW-BTC,KRW-ETH")),
		UseMockFeed:         getEnv("USE_MOCK_FEED", "true") == "true",
		PaperTrading:        getEnv("PAPER_TRADING", "true") == "true",
		PaperInitialBalance: getEnvFloat("PAPER_INITIAL_BALANCE", 1_000_000),
		OrderTimeout:        time.Duration(getEnvInt("ORDER_TIMEOUT_MS", 10_000)) * time.Millisecond,
		FeeRate:             getEnvFloat("FEE_RATE", 0.0005),
		SweepInterval:       time.Duration(getEnvInt("SWEEP_INTERVAL_MS", 10_000)) * time.Millisecond,
		StrategiesFile:      getEnv("STRATEGIES_FILE", "./strategies.yaml"),
		DBPath:              getEnv("DB_PATH", "./data/trader.db"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
