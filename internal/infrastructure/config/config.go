package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	AuthAPIURL        string        `env:"AUTH_API_URL,       default=http://localhost:5000"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL, default=30s"`
	SessionTTL        time.Duration `env:"SESSION_TTL,        default=24h"`
	CookieSecure      bool          `env:"COOKIE_SECURE,      default=true"`
	UploadMaxBytes    int64         `env:"UPLOAD_MAX_BYTES,   default=20971520"`

	// Classifications is the only source of the recall classification
	// vocabulary offered by the UI and accepted on update.
	Classifications []string `env:"RECALL_CLASSIFICATIONS, default=Class I,Class II,Class III,Pending Review,Not Applicable"`

	OIDC  OIDCConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type OIDCConfig struct {
	Issuer       string `env:"OIDC_ISSUER,        default=https://accounts.google.com"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `env:"OIDC_REDIRECT_URL,  default=http://localhost:8080/auth/callback"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=rapidrecall_dashboard"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	cfg.Classifications = trimAll(cfg.Classifications)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the dashboard cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if len(c.Classifications) == 0 {
		errs = append(errs, errors.New("RECALL_CLASSIFICATIONS must not be empty"))
	}
	if c.AuthAPIURL == "" {
		errs = append(errs, errors.New("AUTH_API_URL is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
