package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the sim core.
type Config struct {
	Port string

	// Market data
	MarketAPIKey     string
	MarketAPIBase    string
	UseSyntheticFeed bool

	// Instruments
	OpenInstruments  []string
	ActiveInstrument string
	InstrumentsPath  string
	Timeframe        string // candle bucket: 5s, 30s, 1m or 5m

	// Player session
	InitialBalance float64
	ProMode        bool

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Localization
	Language string // "en" or "pt"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		MarketAPIKey:     os.Getenv("MARKET_API_KEY"),
		MarketAPIBase:    getEnv("MARKET_API_BASE", "https://api.polygon.io"),
		UseSyntheticFeed: getEnv("USE_SYNTHETIC_FEED", "false") == "true",
		OpenInstruments:  splitAndTrim(getEnv("OPEN_INSTRUMENTS", "EUR/USD,EUR/JPY,BTC-USD,CHF/JPY")),
		ActiveInstrument: getEnv("ACTIVE_INSTRUMENT", "EUR/USD"),
		InstrumentsPath:  getEnv("INSTRUMENTS_PATH", "instruments.yaml"),
		Timeframe:        getEnv("TIMEFRAME", "5s"),
		InitialBalance:   getEnvFloat("INITIAL_BALANCE", 1000.0),
		ProMode:          getEnv("PRO_MODE", "false") == "true",
		DBPath:           getEnv("DB_PATH", "./data/tradesim.db"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		Language:         getEnv("LANGUAGE", "en"),
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
