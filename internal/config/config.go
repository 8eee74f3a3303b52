// Package config loads runtime configuration from the environment, an
// optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
	S3        S3Config        `yaml:"s3"`
	Stripe    StripeConfig    `yaml:"stripe"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"PORT,default=8080" yaml:"port"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
	AuditLogPath    string        `env:"AUDIT_LOG_PATH" yaml:"audit_log_path"`
}

// DatabaseConfig selects the store. An empty DSN uses the in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres" yaml:"driver"`
	DSN             string `env:"DATABASE_URL" yaml:"dsn"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=20" yaml:"max_open_conns"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300" yaml:"conn_max_lifetime"`
	MigrateOnStart  bool   `env:"DATABASE_MIGRATE_ON_START,default=false" yaml:"migrate_on_start"`
}

// RedisConfig enables the shared cache. An empty address uses an in-process cache.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB,default=0" yaml:"db"`
	TTL      time.Duration `env:"CACHE_TTL,default=5m" yaml:"ttl"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=json" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=travelties" yaml:"file_prefix"`
}

// FirebaseConfig configures ID token verification and the email verification page.
type FirebaseConfig struct {
	ProjectID   string `env:"FIREBASE_PROJECT_ID" yaml:"project_id"`
	APIKey      string `env:"FIREBASE_API_KEY" yaml:"api_key"`
	AuthMode    string `env:"AUTH_MODE,default=firebase" yaml:"auth_mode"`
	CertsURL    string `env:"FIREBASE_CERTS_URL,default=https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com" yaml:"certs_url"`
	IdentityURL string `env:"FIREBASE_IDENTITY_URL,default=https://identitytoolkit.googleapis.com" yaml:"identity_url"`
	AppDeepLink string `env:"APP_DEEP_LINK,default=travelties://" yaml:"app_deep_link"`
}

// S3Config configures photo storage.
type S3Config struct {
	Bucket         string        `env:"S3_BUCKET" yaml:"bucket"`
	Region         string        `env:"AWS_REGION,default=us-east-1" yaml:"region"`
	Endpoint       string        `env:"S3_ENDPOINT" yaml:"endpoint"`
	UploadExpiry   time.Duration `env:"S3_UPLOAD_EXPIRY,default=15m" yaml:"upload_expiry"`
	DownloadExpiry time.Duration `env:"S3_DOWNLOAD_EXPIRY,default=1h" yaml:"download_expiry"`
}

// StripeConfig configures settlement payments.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY" yaml:"secret_key"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" yaml:"webhook_secret"`
}

// CORSConfig lists allowed origins, comma separated.
type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=20" yaml:"requests_per_second"`
	Burst             int `env:"RATE_LIMIT_BURST,default=40" yaml:"burst"`
}

// JobsConfig holds cron specs for background jobs. An empty spec disables a job.
type JobsConfig struct {
	ClosePolls       string        `env:"JOB_CLOSE_POLLS,default=@every 1m" yaml:"close_polls"`
	PurgeUploads     string        `env:"JOB_PURGE_UPLOADS,default=@hourly" yaml:"purge_uploads"`
	LimiterCleanup   string        `env:"JOB_LIMITER_CLEANUP,default=@every 10m" yaml:"limiter_cleanup"`
	PendingUploadTTL time.Duration `env:"PENDING_UPLOAD_TTL,default=24h" yaml:"pending_upload_ttl"`
}

// Load reads .env (if present), the environment, and the YAML overlay named
// by TRAVELTIES_CONFIG (if set), then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("TRAVELTIES_CONFIG")); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyFile overlays values from a YAML file onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Firebase.AuthMode {
	case "firebase":
		if strings.TrimSpace(c.Firebase.ProjectID) == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	case "insecure":
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Firebase.AuthMode)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must be non-negative")
	}
	return nil
}

// Origins returns the parsed CORS origin list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UseMemoryStore reports whether no database is configured.
func (d DatabaseConfig) UseMemoryStore() bool {
	return strings.TrimSpace(d.DSN) == ""
}

// GalleryEnabled reports whether photo uploads are possible.
func (s S3Config) GalleryEnabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

// PaymentsEnabled reports whether Stripe is configured.
func (s StripeConfig) PaymentsEnabled() bool {
	return strings.TrimSpace(s.SecretKey) != ""
}
