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
	Addr                     string
	Environment              string
	SpreadsheetID            string
	AppsScriptURL            string
	GvizBaseURL              string
	UsersSheet               string
	UniqueSheet              string
	ChecklistSheet           string
	HolidaySheet             string
	GoogleCredentialsFile    string
	SheetsHeaderRows         int
	UpstreamTimeout          time.Duration
	ReconcileDelay           time.Duration
	HolidayRefreshSchedule   string
	DirectoryRefreshSchedule string
	CacheDir                 string
	DatabaseURL              string
	MigrationsDir            string
	DataEncryptionKey        string
	JWTSecret                string
	TokenTTL                 time.Duration
	AdminUsername            string
	AdminPasswordHash        string
	MaxBodyBytes             int64
	RateLimitPerMinute       int
	CORSOrigin               string
	MetricsEnabled           bool
}

// Load reads the process environment, after merging an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv load failed", "err", err)
	}
	return Config{
		Addr:                     getEnv("APP_ADDR", ":8080"),
		Environment:              getEnv("APP_ENV", "development"),
		SpreadsheetID:            getEnv("SPREADSHEET_ID", ""),
		AppsScriptURL:            getEnv("APPS_SCRIPT_URL", ""),
		GvizBaseURL:              getEnv("GVIZ_BASE_URL", "https://docs.google.com"),
		UsersSheet:               getEnv("USERS_SHEET", "Whatsapp"),
		UniqueSheet:              getEnv("UNIQUE_SHEET", "UNIQUE"),
		ChecklistSheet:           getEnv("CHECKLIST_SHEET", "Checklist"),
		HolidaySheet:             getEnv("HOLIDAY_SHEET", "Working Day Calendar"),
		GoogleCredentialsFile:    getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		SheetsHeaderRows:         getEnvInt("SHEETS_HEADER_ROWS", 1),
		UpstreamTimeout:          getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		ReconcileDelay:           getEnvDuration("RECONCILE_DELAY", 2500*time.Millisecond),
		HolidayRefreshSchedule:   getEnv("HOLIDAY_REFRESH_SCHEDULE", ""),
		DirectoryRefreshSchedule: getEnv("DIRECTORY_REFRESH_SCHEDULE", ""),
		CacheDir:                 getEnv("CACHE_DIR", "storage/cache"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		MigrationsDir:            getEnv("MIGRATIONS_DIR", "migrations"),
		DataEncryptionKey:        getEnv("DATA_ENCRYPTION_KEY", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		TokenTTL:                 getEnvDuration("TOKEN_TTL", 12*time.Hour),
		AdminUsername:            getEnv("ADMIN_USERNAME", ""),
		AdminPasswordHash:        getEnv("ADMIN_PASSWORD_HASH", ""),
		MaxBodyBytes:             int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:       getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigin:               getEnv("CORS_ORIGIN", "*"),
		MetricsEnabled:           getEnvBool("METRICS_ENABLED", true),
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
	if strings.TrimSpace(c.SpreadsheetID) == "" && strings.TrimSpace(c.GoogleCredentialsFile) == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}
	if strings.TrimSpace(c.AppsScriptURL) == "" {
		return fmt.Errorf("APPS_SCRIPT_URL is required")
	}
	if c.GoogleCredentialsFile != "" && strings.TrimSpace(c.SpreadsheetID) == "" {
		return fmt.Errorf("SPREADSHEET_ID must be set when GOOGLE_CREDENTIALS_FILE is used")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for the local cache")
		}
	}
	if c.AdminUsername != "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH must be set when ADMIN_USERNAME is set")
	}
	if c.SheetsHeaderRows < 0 {
		return fmt.Errorf("SHEETS_HEADER_ROWS must not be negative")
	}
	if c.ReconcileDelay < 0 {
		return fmt.Errorf("RECONCILE_DELAY must not be negative")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}
