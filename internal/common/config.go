package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/finreport/constants"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	Chart      ChartConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "pgx" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr      string
	GRPCAddr      string
	PublicBaseURL string
	APIToken      string
	DevMode       bool
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	Dir            string
	MaxUploadBytes int64
	UploadTimeout  time.Duration
}

// ExtractionConfig holds extraction-service configuration
type ExtractionConfig struct {
	Endpoint    string
	Timeout     time.Duration
	LenientJSON bool
	MaxPeriods  int
}

// ChartConfig holds chart normalization and presentation configuration
type ChartConfig struct {
	PeriodALabel string
	PeriodBLabel string
	Currency     string
	ChartPath    string
	Transport    string // "query", "message" or "handoff"
	HandoffTTL   time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// LoadConfig loads configuration from a .env file (if present) and environment variables
func LoadConfig() *Config {
	// A missing .env is fine; real environment variables win either way.
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:finreport.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:      getEnv("GRPC_ADDR", ":8081"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			APIToken:      getEnv("API_TOKEN", ""),
			DevMode:       getEnvAsBool("DEV_MODE", false),
		},
		Storage: StorageConfig{
			Dir:            getEnv("STORAGE_DIR", "./tmp/files"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", constants.MaxUploadBytesDefault),
			UploadTimeout:  getEnvAsDuration("UPLOAD_TIMEOUT", 2*time.Minute),
		},
		Extraction: ExtractionConfig{
			Endpoint:    getEnv("EXTRACTION_URL", ""),
			Timeout:     getEnvAsDuration("EXTRACTION_TIMEOUT", 90*time.Second),
			LenientJSON: getEnvAsBool("EXTRACTION_LENIENT_JSON", false),
			MaxPeriods:  getEnvAsInt("EXTRACTION_MAX_PERIODS", 64),
		},
		Chart: ChartConfig{
			PeriodALabel: getEnv("PERIOD_A_LABEL", constants.PeriodALabelDefault),
			PeriodBLabel: getEnv("PERIOD_B_LABEL", constants.PeriodBLabelDefault),
			Currency:     getEnv("CHART_CURRENCY", constants.CurrencyCodeDefault),
			ChartPath:    getEnv("CHART_PATH", constants.ChartPathDefault),
			Transport:    getEnv("TRANSPORT", "query"),
			HandoffTTL:   getEnvAsDuration("HANDOFF_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "pgx", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be pgx or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Extraction.Endpoint == "" {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.PublicBaseURL == "" {
		return NewAppError("CONFIG_ERROR", "PUBLIC_BASE_URL is required", ErrInvalidInput)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Chart.PeriodALabel == c.Chart.PeriodBLabel {
		return NewAppError("CONFIG_ERROR", "PERIOD_A_LABEL and PERIOD_B_LABEL must differ", ErrInvalidInput)
	}
	switch c.Chart.Transport {
	case "query", "message", "handoff":
	default:
		return NewAppError("CONFIG_ERROR", "TRANSPORT must be query, message or handoff", ErrInvalidInput)
	}
	v := NewValidator().Field("CHART_CURRENCY", c.Chart.Currency, CurrencyCode)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
