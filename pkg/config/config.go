// Package config loads gateway settings from the environment and an optional
// YAML tuning file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the gateway.
type Config struct {
	Port string

	// Auth
	APISecret string
	JWTSecret string

	// Venue connection
	Server   string
	Login    int64
	Password string

	// Terminal transport. When UseSimTerminal is set the gateway runs
	// against the in-process simulator instead of the bridge.
	UseSimTerminal bool
	BridgeURL      string
	SimSymbols     []string

	// Database
	DBPath string

	Tuning Tuning
}

// Tuning carries the behavioural knobs loaded from the YAML overlay.
// Zero values fall back to the built-in defaults of each component.
type Tuning struct {
	PollIntervalMs       int `yaml:"poll_interval_ms"`
	StreamErrorThreshold int `yaml:"stream_error_threshold"`
	OrderDeviation       int `yaml:"order_deviation"`
	RequoteDeviation     int `yaml:"requote_deviation"`
	CloseMaxAttempts     int `yaml:"close_max_attempts"`
	CloseRetryPauseMs    int `yaml:"close_retry_pause_ms"`
	StopTimeoutSec       int `yaml:"stop_timeout_sec"`
}

// PollInterval returns the configured poll interval, zero when unset.
func (t Tuning) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// CloseRetryPause returns the configured retry pause, zero when unset.
func (t Tuning) CloseRetryPause() time.Duration {
	return time.Duration(t.CloseRetryPauseMs) * time.Millisecond
}

// StopTimeout returns the configured worker stop bound, zero when unset.
func (t Tuning) StopTimeout() time.Duration {
	return time.Duration(t.StopTimeoutSec) * time.Second
}

// Load reads environment variables (optionally via .env) into Config. When
// TUNING_PATH points at a YAML file its values overlay the defaults.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		APISecret:      getEnv("API_SECRET", "dev-api-secret"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		Server:         os.Getenv("MT5_SERVER"),
		Login:          getEnvInt64("MT5_LOGIN", 0),
		Password:       os.Getenv("MT5_PASSWORD"),
		UseSimTerminal: getEnv("USE_SIM_TERMINAL", "true") == "true",
		BridgeURL:      getEnv("BRIDGE_URL", "ws://localhost:9090/terminal"),
		SimSymbols:     splitAndTrim(getEnv("SIM_SYMBOLS", "EURUSD,GBPUSD,XAUUSD")),
		DBPath:         getEnv("DB_PATH", "./data/gateway.db"),
	}

	if path := os.Getenv("TUNING_PATH"); path != "" {
		tuning, err := loadTuning(path)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
	}

	return cfg, nil
}

func loadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file: %w", err)
	}
	return t, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
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
