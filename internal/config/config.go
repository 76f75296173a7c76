package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Jobs     JobsConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig - an empty Addr disables Redis: locks stay in-process and
// background jobs run on the local scheduler.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Name           string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type PayrollConfig struct {
	WorkingDaysNorm int
	Workers         int
	RuleTablePath   string
	RunsPerMinute   int
	RunLockTTL      time.Duration
}

// JobsConfig - cron specs drive the asynq scheduler; the intervals drive the
// in-process scheduler used without Redis.
type JobsConfig struct {
	Concurrency             int
	MetricsPort             int
	OverdueScanSpec         string
	LeaveInitializeSpec     string
	OverdueScanInterval     time.Duration
	LeaveInitializeInterval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		slog.Info("No .env file found, using process environment")
	}

	l := &loader{}
	config := &Config{}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            l.int("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "manpower_payroll"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(l.int("DB_MAX_CONNS", 20)),
		MinConns:        int32(l.int("DB_MIN_CONNS", 2)),
		MaxConnLifetime: l.duration("DB_MAX_CONN_LIFETIME", time.Hour),
		AutoMigrate:     l.bool("DB_AUTO_MIGRATE", false),
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       l.int("REDIS_DB", 0),
	}

	config.App = AppConfig{
		Name:           getEnv("APP_NAME", "manpower-payroll"),
		Port:           l.int("APP_PORT", 8080),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: l.duration("JWT_ACCESS_EXPIRATION_TIME", time.Hour),
	}

	config.Payroll = PayrollConfig{
		WorkingDaysNorm: l.int("PAYROLL_WORKING_DAYS_NORM", 26),
		Workers:         l.int("PAYROLL_WORKERS", 8),
		RuleTablePath:   getEnv("RULE_TABLE_PATH", ""),
		RunsPerMinute:   l.int("PAYROLL_RUNS_PER_MINUTE", 6),
		RunLockTTL:      l.duration("PAYROLL_RUN_LOCK_TTL", 15*time.Minute),
	}

	config.Jobs = JobsConfig{
		Concurrency:             l.int("JOBS_CONCURRENCY", 4),
		MetricsPort:             l.int("JOBS_METRICS_PORT", 9091),
		OverdueScanSpec:         getEnv("JOBS_OVERDUE_SCAN_SPEC", "0 2 * * *"),
		LeaveInitializeSpec:     getEnv("JOBS_LEAVE_INITIALIZE_SPEC", "5 0 1 1 *"),
		OverdueScanInterval:     l.duration("JOBS_OVERDUE_SCAN_INTERVAL", 6*time.Hour),
		LeaveInitializeInterval: l.duration("JOBS_LEAVE_INITIALIZE_INTERVAL", 24*time.Hour),
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Payroll.WorkingDaysNorm < 1 || c.Payroll.WorkingDaysNorm > 31 {
		return fmt.Errorf("PAYROLL_WORKING_DAYS_NORM must be between 1 and 31, got %d", c.Payroll.WorkingDaysNorm)
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive, got %d", c.Payroll.Workers)
	}
	if c.Payroll.RunLockTTL <= 0 {
		return fmt.Errorf("PAYROLL_RUN_LOCK_TTL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// loader collects parse errors so every bad variable is reported at once.
type loader struct {
	errs []error
}

func (l *loader) int(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}

func (l *loader) bool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
