package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries the process-level settings, read from the environment with
// an optional .env file.
type Config struct {
	Addr           string
	DownloadDir    string
	StaticDir      string
	RateLimitRPS   int
	RateLimitBurst int
}

func Load() *Config {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		Addr:           envOrDefault("APP_ADDR", ":8080"),
		DownloadDir:    envOrDefault("DOWNLOAD_DIR", "download"),
		StaticDir:      envOrDefault("STATIC_DIR", "static"),
		RateLimitRPS:   envIntOrDefault("RATE_LIMIT_RPS", 100),
		RateLimitBurst: envIntOrDefault("RATE_LIMIT_BURST", 200),
	}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
