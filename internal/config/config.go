// Package config loads runtime settings from .env, an optional YAML file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
	LogLevel    string `yaml:"log_level"`

	Storage     string `yaml:"storage"`
	DatabaseURL string `yaml:"database_url"`

	EncryptionKey string        `yaml:"encryption_key"`
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTTTL        time.Duration `yaml:"jwt_ttl"`

	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	SES       SESConfig       `yaml:"ses"`
	Stripe    StripeConfig    `yaml:"stripe"`

	ExportLimit int `yaml:"export_limit"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`

	// TrustedProxies is the number of reverse proxies in front of the API
	// that append to X-Forwarded-For. Zero ignores the header.
	TrustedProxies int `yaml:"trusted_proxies"`
}

type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	From      string `yaml:"from"`
	NotifyTo  string `yaml:"notify_to"`
}

// Enabled reports whether mail notifications can be sent.
func (s SESConfig) Enabled() bool { return s.From != "" && s.NotifyTo != "" }

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		FrontendURL: "http://localhost:3000",
		LogLevel:    "INFO",
		Storage:     StoragePostgres,
		JWTTTL:      24 * time.Hour,
		RateLimit:   RateLimitConfig{PerMinute: 5, Burst: 5},
		SES:         SESConfig{Region: "us-east-1"},
		ExportLimit: 10000,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables. Missing required secrets are an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.FrontendURL, "FRONTEND_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Storage, "STORAGE")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.EncryptionKey, "ENCRYPTION_KEY")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKey, "SES_ACCESS_KEY")
	setString(&c.SES.SecretKey, "SES_SECRET_KEY")
	setString(&c.SES.From, "SES_FROM")
	setString(&c.SES.NotifyTo, "NOTIFY_TO")
	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	if err := setDuration(&c.JWTTTL, "JWT_TTL"); err != nil {
		return err
	}
	for key, dst := range map[string]*int{
		"REDIS_DB":              &c.Redis.DB,
		"RATE_LIMIT_PER_MINUTE": &c.RateLimit.PerMinute,
		"RATE_LIMIT_BURST":      &c.RateLimit.Burst,
		"TRUSTED_PROXY_COUNT":   &c.RateLimit.TrustedProxies,
		"EXPORT_LIMIT":          &c.ExportLimit,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	c.Storage = strings.ToLower(c.Storage)
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required unless STORAGE=memory"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage))
	}
	if c.RateLimit.PerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.RateLimit.TrustedProxies < 0 {
		errs = append(errs, errors.New("TRUSTED_PROXY_COUNT must not be negative"))
	}
	if c.ExportLimit <= 0 {
		errs = append(errs, errors.New("EXPORT_LIMIT must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go duration strings ("12h") or a number of seconds.
func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
