package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr            string        `envconfig:"APP_ADDR" default:":8080"`
	Environment     string        `envconfig:"APP_ENV" default:"development"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`
	RatesTTL  time.Duration `envconfig:"RATES_CACHE_TTL" default:"1h"`
	RatesFile string        `envconfig:"RATES_FILE"`

	JWTSecret         string `envconfig:"JWT_SECRET"`
	DataEncryptionKey string `envconfig:"DATA_ENCRYPTION_KEY"`

	MaxBodyBytes       int64    `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	CORSOrigins        []string `envconfig:"CORS_ORIGINS"`
	MetricsEnabled     bool     `envconfig:"METRICS_ENABLED" default:"true"`
	JobWorkers         int      `envconfig:"JOB_WORKERS" default:"2"`
	JobQueueSize       int      `envconfig:"JOB_QUEUE_SIZE" default:"32"`

	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"1h"`
	IdempotencyTTL    time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	JobRunRetention   time.Duration `envconfig:"JOB_RUN_RETENTION" default:"720h"`
}

// Load reads the environment, after applying an optional .env file. Values
// already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if len(strings.TrimSpace(c.JWTSecret)) < 32 {
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
	if c.JobWorkers <= 0 || c.JobQueueSize <= 0 {
		return fmt.Errorf("JOB_WORKERS and JOB_QUEUE_SIZE must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}
