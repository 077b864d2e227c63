package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/payslip",
		JWTSecret:          "dev-secret",
		Environment:        "development",
		PayslipDir:         "storage/payslips",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 60,
		CalcWorkers:        2,
		DocumentQueueSize:  8,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CALC_WORKERS", "")
	t.Setenv("APP_ADDR", "")
	t.Setenv("DB_CONNECT_RETRIES", "")

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.Addr)
	}
	if cfg.CalcWorkers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.CalcWorkers)
	}
	if !cfg.RunMigrations {
		t.Fatal("expected migrations to run by default")
	}
	if cfg.DBConnectRetries != 5 {
		t.Fatalf("expected 5 connect retries, got %d", cfg.DBConnectRetries)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TAX_YEARS_FILE=/etc/payslip/years.yaml\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("TAX_YEARS_FILE", "")
	os.Unsetenv("TAX_YEARS_FILE")
	t.Cleanup(func() { os.Unsetenv("TAX_YEARS_FILE") })

	cfg := Load()
	if cfg.TaxYearsFile != "/etc/payslip/years.yaml" {
		t.Fatalf("expected tax years file from env file, got %q", cfg.TaxYearsFile)
	}
}

func TestLoadParsesTypedValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CALC_WORKERS", "9")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	if cfg.CalcWorkers != 9 {
		t.Fatalf("expected workers 9, got %d", cfg.CalcWorkers)
	}
	if cfg.MetricsEnabled {
		t.Fatal("expected metrics disabled")
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Fatalf("expected fallback rate limit, got %d", cfg.RateLimitPerMinute)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg := validConfig()
	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing database url error")
	}

	cfg = validConfig()
	cfg.Environment = "production"
	cfg.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short production secret error")
	}

	cfg = validConfig()
	cfg.Environment = "production"
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing encryption key error in production")
	}

	cfg = validConfig()
	cfg.CalcWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected worker count error")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := (Config{LogLevel: raw}).SlogLevel(); got != want {
			t.Fatalf("level %q: expected %v, got %v", raw, want, got)
		}
	}
}
