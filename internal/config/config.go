// Package config provides configuration management for the dispatch
// engine's host process (cmd/dispatchd), in the teacher's flags + .env +
// environment-variable layering.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the settings cmd/dispatchd uses to wire the dispatcher,
// discovery service, and admin HTTP surface.
type Config struct {
	// Admin HTTP surface
	Host string
	Port string

	// Dispatcher defaults
	DefaultBufferCapacity int
	DefaultThresholdPct   float64
	EventChannelSize      int

	// Remote model registry
	RegistryBaseURL string
	RegistryToken   string
	RegistryTimeout time.Duration

	// ModelsDir, if set, is scanned for model subdirectories at startup.
	ModelsDir string

	// Logging
	LogLevel string
}

// New creates a Config populated from environment variables, falling back
// to defaults tuned for a single-node development deployment.
func New() *Config {
	return &Config{
		Host:                  getEnv("HOST", "0.0.0.0"),
		Port:                  getEnv("PORT", "8080"),
		DefaultBufferCapacity: getEnvAsInt("DEFAULT_BUFFER_CAPACITY", 100),
		DefaultThresholdPct:   getEnvAsFloat("DEFAULT_THRESHOLD_PCT", 80.0),
		EventChannelSize:      getEnvAsInt("EVENT_CHANNEL_SIZE", 256),
		RegistryBaseURL:       getEnv("REGISTRY_BASE_URL", ""),
		RegistryToken:         getEnv("REGISTRY_TOKEN", ""),
		RegistryTimeout:       getEnvAsDuration("REGISTRY_TIMEOUT", 30*time.Second),
		ModelsDir:             getEnv("MODELS_DIR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
}

// ParseFlags overlays command-line flags on top of the environment-derived
// defaults.
func (c *Config) ParseFlags() {
	flag.StringVar(&c.Host, "host", c.Host, "admin HTTP host")
	flag.StringVar(&c.Port, "port", c.Port, "admin HTTP port")
	flag.IntVar(&c.DefaultBufferCapacity, "buffer-capacity", c.DefaultBufferCapacity, "default per-model ring buffer capacity")
	flag.Float64Var(&c.DefaultThresholdPct, "threshold-pct", c.DefaultThresholdPct, "default flush threshold percentage")
	flag.IntVar(&c.EventChannelSize, "event-channel-size", c.EventChannelSize, "bound on the buffer event channel")
	flag.StringVar(&c.RegistryBaseURL, "registry-base-url", c.RegistryBaseURL, "remote model registry base URL")
	flag.StringVar(&c.RegistryToken, "registry-token", c.RegistryToken, "remote model registry bearer token")
	flag.StringVar(&c.ModelsDir, "models-dir", c.ModelsDir, "directory scanned for model subdirectories at startup")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")

	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
