package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	Environment        string
	LogLevel           string
	DatabaseURL        string
	DBConnectRetries   int
	JWTSecret          string
	DataEncryptionKey  string
	TaxYearsFile       string
	FormulasFile       string
	PayslipDir         string
	RunMigrations      bool
	MigrationsDir      string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	CalcWorkers        int
	DocumentQueueSize  int
	ShutdownTimeout    time.Duration
}

// Load reads the environment, preloading ENV_FILE (default .env) when it exists.
// Variables already set in the process environment win over the file.
func Load() Config {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("env file not loaded", "path", envFile, "err", err)
	}

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBConnectRetries:   getEnvInt("DB_CONNECT_RETRIES", 5),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DataEncryptionKey:  getEnv("DATA_ENCRYPTION_KEY", ""),
		TaxYearsFile:       getEnv("TAX_YEARS_FILE", ""),
		FormulasFile:       getEnv("FORMULAS_FILE", ""),
		PayslipDir:         getEnv("PAYSLIP_DIR", "storage/payslips"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		CalcWorkers:        getEnvInt("CALC_WORKERS", 4),
		DocumentQueueSize:  getEnvInt("DOCUMENT_QUEUE_SIZE", 128),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.CalcWorkers <= 0 {
		return fmt.Errorf("CALC_WORKERS must be positive")
	}
	if c.DocumentQueueSize <= 0 {
		return fmt.Errorf("DOCUMENT_QUEUE_SIZE must be positive")
	}
	if strings.TrimSpace(c.PayslipDir) == "" {
		return fmt.Errorf("PAYSLIP_DIR is required")
	}
	return nil
}
