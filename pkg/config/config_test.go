package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "API_SECRET", "JWT_SECRET", "MT5_SERVER", "MT5_LOGIN", "MT5_PASSWORD",
		"USE_SIM_TERMINAL", "BRIDGE_URL", "SIM_SYMBOLS", "DB_PATH", "TUNING_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %s, want 8080", cfg.Port)
	}
	if !cfg.UseSimTerminal {
		t.Error("sim terminal should default to on")
	}
	if len(cfg.SimSymbols) != 3 {
		t.Errorf("sim symbols = %v, want 3 defaults", cfg.SimSymbols)
	}
	if cfg.Tuning.PollInterval() != 0 {
		t.Errorf("poll interval = %v, want zero when no tuning file is set", cfg.Tuning.PollInterval())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MT5_LOGIN", "2000123")
	t.Setenv("USE_SIM_TERMINAL", "false")
	t.Setenv("SIM_SYMBOLS", " EURUSD , , XAUUSD ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("port = %s, want 9999", cfg.Port)
	}
	if cfg.Login != 2000123 {
		t.Errorf("login = %d, want 2000123", cfg.Login)
	}
	if cfg.UseSimTerminal {
		t.Error("sim terminal should be off")
	}
	if len(cfg.SimSymbols) != 2 || cfg.SimSymbols[0] != "EURUSD" || cfg.SimSymbols[1] != "XAUUSD" {
		t.Errorf("sim symbols = %v, want trimmed [EURUSD XAUUSD]", cfg.SimSymbols)
	}
}

func TestLoadTuningOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	yaml := `
poll_interval_ms: 250
stream_error_threshold: 3
close_max_attempts: 5
close_retry_pause_ms: 100
stop_timeout_sec: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}
	t.Setenv("TUNING_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.PollInterval() != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", cfg.Tuning.PollInterval())
	}
	if cfg.Tuning.StreamErrorThreshold != 3 {
		t.Errorf("error threshold = %d, want 3", cfg.Tuning.StreamErrorThreshold)
	}
	if cfg.Tuning.CloseMaxAttempts != 5 {
		t.Errorf("close attempts = %d, want 5", cfg.Tuning.CloseMaxAttempts)
	}
	if cfg.Tuning.CloseRetryPause() != 100*time.Millisecond {
		t.Errorf("retry pause = %v, want 100ms", cfg.Tuning.CloseRetryPause())
	}
	if cfg.Tuning.StopTimeout() != 2*time.Second {
		t.Errorf("stop timeout = %v, want 2s", cfg.Tuning.StopTimeout())
	}
}

func TestLoadTuningMissingFile(t *testing.T) {
	t.Setenv("TUNING_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for a missing tuning file")
	}
}
