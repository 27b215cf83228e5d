package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig
	Workers  WorkerConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Gemini   GeminiConfig
	Anomaly  AnomalyConfig
	Notify   NotifyConfig
	Triggers TriggerConfig
	Server   ServerConfig
}

// StoreConfig selects and configures the job-record store.
type StoreConfig struct {
	Driver          string // "postgres" | "sqlite"
	DSN             string // postgres DSN or sqlite file path
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthTimeout   time.Duration
}

// WorkerConfig bounds the processing pool.
type WorkerConfig struct {
	Count      int
	QueueSize  int
	JobTimeout time.Duration
}

// ExtractConfig holds OCR-related configuration
type ExtractConfig struct {
	SourceRoot  string // root directory resolved against trigger source references
	ArtifactDir string // where raw fragment dumps are written
	Languages   []string
}

// LLMConfig configures the OpenAI-compatible categorization strategy.
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// GeminiConfig configures the Gemini categorization strategy.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// AnomalyConfig holds detector thresholds and the fingerprint store location.
type AnomalyConfig struct {
	HighTotalThreshold float64
	FingerprintDB      string // bbolt file; empty selects the in-memory store
	FingerprintTTL     time.Duration
}

// NotifyConfig configures the alert notification sink.
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID int64
}

// TriggerConfig configures trigger intake.
type TriggerConfig struct {
	WatchDir string
}

// ServerConfig holds daemon listener configuration.
type ServerConfig struct {
	HealthAddr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "sqlite"),
			DSN:             getEnv("STORE_DSN", "receipts.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			HealthTimeout:   getEnvAsDuration("DB_HEALTH_TIMEOUT", 3*time.Second),
		},
		Workers: WorkerConfig{
			Count:      getEnvAsInt("WORKER_COUNT", 4),
			QueueSize:  getEnvAsInt("WORKER_QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("JOB_TIMEOUT", 3*time.Minute),
		},
		Extract: ExtractConfig{
			SourceRoot:  getEnv("SOURCE_ROOT", "./uploads"),
			ArtifactDir: getEnv("ARTIFACT_DIR", "./artifacts"),
			Languages:   []string{getEnv("OCR_LANG", "eng")},
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Anomaly: AnomalyConfig{
			HighTotalThreshold: getEnvAsFloat64("HIGH_TOTAL_THRESHOLD", 200.0),
			FingerprintDB:      getEnv("FINGERPRINT_DB", ""),
			FingerprintTTL:     getEnvAsDuration("FINGERPRINT_TTL", 30*24*time.Hour),
		},
		Notify: NotifyConfig{
			TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID: getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Triggers: TriggerConfig{
			WatchDir: getEnv("TRIGGER_DIR", "./triggers"),
		},
		Server: ServerConfig{
			HealthAddr: getEnv("HEALTH_ADDR", ":8080"),
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be postgres or sqlite", ErrValidation)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "STORE_DSN is required", ErrValidation)
	}
	if c.Workers.Count <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_COUNT must be positive", ErrValidation)
	}
	if c.Anomaly.HighTotalThreshold <= 0 {
		return NewAppError("CONFIG_ERROR", "HIGH_TOTAL_THRESHOLD must be positive", ErrValidation)
	}
	return nil
}
