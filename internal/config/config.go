package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const SupportedJWTAlgorithm = "HS256"

// Config holds the non secret settings from the TOML file, one section per environment,
// plus the secrets and overrides read from the environment.
type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// metrics
	MetricsHost string `toml:"metrics_host"`
	MetricsPort int    `toml:"metrics_port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
	LogCompress   bool   `toml:"log_compress"`
	// sentry, DSN comes from SENTRY_DSN
	SentryEnabled          bool    `toml:"sentry_enabled"`
	SentryTracesSampleRate float64 `toml:"sentry_traces_sample_rate"`
	SentryMinLevel         string  `toml:"sentry_min_level"`
	// redis, used for login rate limiting
	RedisHost           string `toml:"redis_host"`
	RedisPort           string `toml:"redis_port"`
	LoginAttemptsPerMin int    `toml:"login_attempts_per_min"`
	// document store
	DatabaseURI  string `toml:"database_uri"`
	DatabaseName string `toml:"database_name"`
	// http
	AllowedOrigins []string `toml:"allowed_origins"`
	// reverse proxies allowed to set X-Real-Ip / X-Forwarded-For, IPs or CIDRs
	TrustedProxies []string `toml:"trusted_proxies"`
	BcryptCost     int      `toml:"bcrypt_cost"`

	Env Env `toml:"-"`
}

// Env is read from the process environment. Secrets never live in the TOML file.
type Env struct {
	SecretKey          string `env:"SECRET_KEY"`
	SecretKeyID        string `env:"SECRET_KEY_ID" envDefault:"v1"`
	PreviousSecretKeys string `env:"PREVIOUS_SECRET_KEYS"`
	JWTAlgorithm       string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTExpiresIn       int    `env:"JWT_EXPIRES_IN" envDefault:"86400"`

	AdminUsername     string `env:"ADMIN_USERNAME"`
	AdminPassword     string `env:"ADMIN_PASSWORD"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	AdminRole         string `env:"ADMIN_ROLE" envDefault:"admin"`

	DatabaseURI    string   `env:"DATABASE_URI"`
	MongoDBURI     string   `env:"MONGODB_URI"`
	DatabaseName   string   `env:"DATABASE_NAME"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	RedisPassword    string `env:"REDIS_PASSWORD"`
	SentryDSN        string `env:"SENTRY_DSN"`
	HoneycombEnabled bool   `env:"HONEYCOMB_ENABLED"`
}

type Toml struct {
	Development *Config
	Production  *Config
	// docker compose setup
	DockerDev *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the section for env from the TOML file at path and applies the environment on top.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(env)

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv parses the process environment into c.Env and applies the overrides.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(&c.Env); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	switch {
	case c.Env.DatabaseURI != "":
		c.DatabaseURI = c.Env.DatabaseURI
	case c.Env.MongoDBURI != "":
		c.DatabaseURI = c.Env.MongoDBURI
	}
	if c.Env.DatabaseName != "" {
		c.DatabaseName = c.Env.DatabaseName
	}
	if len(c.Env.AllowedOrigins) > 0 {
		c.AllowedOrigins = c.Env.AllowedOrigins
	}
	if len(c.Env.TrustedProxies) > 0 {
		c.TrustedProxies = c.Env.TrustedProxies
	}

	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Env.JWTExpiresIn) * time.Second
}

// Validate fails fast on settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.DatabaseURI == "" {
		errs = append(errs, errors.New("database uri not set, use DATABASE_URI"))
	}
	if c.Env.SecretKey == "" {
		errs = append(errs, errors.New("secret key not set, use SECRET_KEY"))
	}
	if c.Env.JWTAlgorithm != SupportedJWTAlgorithm {
		errs = append(errs, fmt.Errorf("unsupported jwt algorithm [%s], only %s is supported", c.Env.JWTAlgorithm, SupportedJWTAlgorithm))
	}
	if c.Env.JWTExpiresIn <= 0 {
		errs = append(errs, fmt.Errorf("jwt expiry must be positive, got %d", c.Env.JWTExpiresIn))
	}
	if c.Env.AdminUsername == "" {
		errs = append(errs, errors.New("admin username not set, use ADMIN_USERNAME"))
	}
	if c.Env.AdminPassword == "" && c.Env.AdminPasswordHash == "" {
		errs = append(errs, errors.New("admin password not set, use ADMIN_PASSWORD_HASH or ADMIN_PASSWORD"))
	}
	if _, err := pkg.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, err)
	}
	if c.SentryTracesSampleRate < 0 || c.SentryTracesSampleRate > 1 {
		errs = append(errs, fmt.Errorf("sentry traces sample rate must be within [0, 1], got %g", c.SentryTracesSampleRate))
	}
	if c.LoginAttemptsPerMin < 0 {
		errs = append(errs, fmt.Errorf("invalid login attempts per minute: %d", c.LoginAttemptsPerMin))
	}
	return errors.Join(errs...)
}
