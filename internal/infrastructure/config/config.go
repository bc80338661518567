package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration. Keys are addressed as
// section.key in config.toml and as CURRICULA_SECTION_KEY in the
// environment, which wins over the file.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Log            LogConfig            `mapstructure:"log"`
	Event          EventConfig          `mapstructure:"event"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Categorization CategorizationConfig `mapstructure:"categorization"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Coverage       CoverageConfig       `mapstructure:"coverage"`
	Maintenance    MaintenanceConfig    `mapstructure:"maintenance"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name   string `mapstructure:"name"`
	Env    string `mapstructure:"env"`
	Port   string `mapstructure:"port"`
	Locale string `mapstructure:"locale"` // BCP 47 tag used to collate framework listings
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// DSN builds a postgres:// URL with user info and database name escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// EventConfig controls deduplication of job events by the metrics recorder
type EventConfig struct {
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	CORSOrigins    []string      `mapstructure:"cors_origins"` // empty disables CORS headers
	HSTS           bool          `mapstructure:"hsts"`
}

// CategorizationConfig is the job engine policy
type CategorizationConfig struct {
	Concurrency         int           `mapstructure:"concurrency"`         // workers per job
	MaxConcurrentJobs   int           `mapstructure:"max_concurrent_jobs"` // per process
	MaxAttempts         int           `mapstructure:"max_attempts"`        // per item
	BaseBackoff         time.Duration `mapstructure:"base_backoff"`        // doubled per attempt
	MaxBackoff          time.Duration `mapstructure:"max_backoff"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxItemsPerJob      int           `mapstructure:"max_items_per_job"`
	PersistenceRetries  int           `mapstructure:"persistence_retries"`
	JobTimeout          time.Duration `mapstructure:"job_timeout"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint
type LLMConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxCandidates int           `mapstructure:"max_candidates"`
	MaxBodyChars  int           `mapstructure:"max_body_chars"`
	Temperature   float64       `mapstructure:"temperature"`
}

type CoverageConfig struct {
	Store     string `mapstructure:"store"` // memory or redis
	KeyPrefix string `mapstructure:"key_prefix"`
	WarmUp    bool   `mapstructure:"warm_up"` // seed counters for every framework on startup
}

// MaintenanceConfig holds the cron schedules of background upkeep
type MaintenanceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Timezone          string        `mapstructure:"timezone"`
	JobCleanupCron    string        `mapstructure:"job_cleanup_cron"`
	JobRetention      time.Duration `mapstructure:"job_retention"`
	ReconcileCron     string        `mapstructure:"reconcile_cron"`
	StaleJobSweepCron string        `mapstructure:"stale_job_sweep_cron"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
}

// defaults registers every key with viper, zero values included, so that
// AutomaticEnv overrides reach Unmarshal.
var defaults = map[string]any{
	"app.name":   "curricula-backend",
	"app.env":    "development",
	"app.port":   "8080",
	"app.locale": "en",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "curricula",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.migrations_path":    "migrations",

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.idempotency_enabled": true,
	"event.idempotency_ttl":     24 * time.Hour,

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    2 << 20,
	"http.trusted_proxies":  []string{},
	"http.cors_origins":     []string{},
	"http.hsts":             false,

	"categorization.concurrency":          4,
	"categorization.max_concurrent_jobs":  8,
	"categorization.max_attempts":         3,
	"categorization.base_backoff":         500 * time.Millisecond,
	"categorization.max_backoff":          10 * time.Second,
	"categorization.confidence_threshold": 0.6,
	"categorization.max_items_per_job":    500,
	"categorization.persistence_retries":  3,
	"categorization.job_timeout":          2 * time.Hour,
	"categorization.shutdown_timeout":     30 * time.Second,

	"llm.base_url":       "https://api.openai.com",
	"llm.api_key":        "",
	"llm.model":          "gpt-4o-mini",
	"llm.timeout":        60 * time.Second,
	"llm.max_candidates": 200,
	"llm.max_body_chars": 12000,
	"llm.temperature":    0.0,

	"coverage.store":      "memory",
	"coverage.key_prefix": "curricula:coverage",
	"coverage.warm_up":    false,

	"maintenance.enabled":              false,
	"maintenance.timezone":             "UTC",
	"maintenance.job_cleanup_cron":     "0 3 * * *",
	"maintenance.job_retention":        90 * 24 * time.Hour,
	"maintenance.reconcile_cron":       "30 3 * * *",
	"maintenance.stale_job_sweep_cron": "*/15 * * * *",

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "curricula-backend",
	"telemetry.insecure":           false,
	"telemetry.db_trace_enabled":   false,
	"telemetry.db_log_full_sql":    false,
	"telemetry.metrics_interval":   60 * time.Second,
}

// Load reads config.toml from the working directory, /etc/curricula or /app
// when present, then applies CURRICULA_* environment overrides.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/curricula")
		v.AddConfigPath("/app")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CURRICULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	}

	cat := c.Categorization
	switch {
	case cat.Concurrency < 1:
		return errors.New("categorization.concurrency must be at least 1")
	case cat.MaxAttempts < 1:
		return errors.New("categorization.max_attempts must be at least 1")
	case cat.ConfidenceThreshold < 0 || cat.ConfidenceThreshold > 1:
		return fmt.Errorf("categorization.confidence_threshold must be within [0, 1], got %g", cat.ConfidenceThreshold)
	case cat.MaxBackoff < cat.BaseBackoff:
		return fmt.Errorf("categorization.max_backoff (%s) cannot be less than base_backoff (%s)", cat.MaxBackoff, cat.BaseBackoff)
	}

	switch c.Coverage.Store {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("coverage.store=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("coverage.store must be memory or redis, got %q", c.Coverage.Store)
	}

	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %g", r)
	}

	if c.App.Env != "production" {
		return nil
	}
	switch {
	case db.Password == "":
		return errors.New("database.password is required in production")
	case db.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case c.LLM.APIKey == "":
		return errors.New("llm.api_key is required in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production")
	}
	return nil
}
