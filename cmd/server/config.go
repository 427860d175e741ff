// Package main provides the focusdial server CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/focusdial/internal/api"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
	"github.com/good-yellow-bee/focusdial/internal/tracker"
)

// jwtSecretEnv names the environment variable holding the token signing key.
const jwtSecretEnv = "FOCUSDIAL_JWT_SECRET"

const minJWTSecretLength = 32

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Timeline TimelineConfig `yaml:"timeline"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string    `yaml:"http_address"`    // API listen address (default: :8080)
	MetricsAddress string    `yaml:"metrics_address"` // Prometheus listen address, empty disables
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS settings for the API listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains token and brute-force protection settings.
// Durations use Go syntax ("15m", "168h").
type AuthConfig struct {
	AccessTokenTTL   string `yaml:"access_token_ttl"`
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"`
	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"`
	LoginRateLimit   int    `yaml:"login_rate_limit"` // per minute per IP
	APIRateLimit     int    `yaml:"api_rate_limit"`   // per minute per user
}

// WebhookConfig controls the device endpoint.
type WebhookConfig struct {
	ProjectUpdate string `yaml:"project_update"` // never, if_changed or always
	RateLimit     int    `yaml:"rate_limit"`     // per minute per API key
	Burst         int    `yaml:"burst"`
}

// TimelineConfig controls range resolution.
type TimelineConfig struct {
	Timezone         string `yaml:"timezone"` // IANA name, empty for the host zone
	WorkdayStartHour *int   `yaml:"workday_start_hour"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/focusdial.db"
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "15m"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "168h"
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = 5
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "15m"
	}
	if c.Auth.LoginRateLimit == 0 {
		c.Auth.LoginRateLimit = 10
	}
	if c.Auth.APIRateLimit == 0 {
		c.Auth.APIRateLimit = 300
	}
	if c.Webhook.ProjectUpdate == "" {
		c.Webhook.ProjectUpdate = string(tracker.UpdateNever)
	}
	if c.Webhook.RateLimit == 0 {
		c.Webhook.RateLimit = 60
	}
	if c.Webhook.Burst == 0 {
		c.Webhook.Burst = 10
	}
	if c.Timeline.WorkdayStartHour == nil {
		h := timeline.DefaultWorkdayStartHour
		c.Timeline.WorkdayStartHour = &h
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return errors.New("server.http_address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return errors.New("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return errors.New("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	for name, v := range map[string]string{
		"auth.access_token_ttl":  c.Auth.AccessTokenTTL,
		"auth.refresh_token_ttl": c.Auth.RefreshTokenTTL,
		"auth.lockout_duration":  c.Auth.LockoutDuration,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Auth.LockoutThreshold < 1 {
		return errors.New("auth.lockout_threshold must be at least 1")
	}
	if c.Auth.LoginRateLimit < 1 || c.Auth.APIRateLimit < 1 {
		return errors.New("auth rate limits must be at least 1")
	}

	if _, err := tracker.ParseProjectUpdatePolicy(c.Webhook.ProjectUpdate); err != nil {
		return fmt.Errorf("webhook.project_update: %w", err)
	}
	if c.Webhook.RateLimit < 1 || c.Webhook.Burst < 1 {
		return errors.New("webhook.rate_limit and webhook.burst must be at least 1")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timeline.timezone: %w", err)
	}
	if h := c.WorkdayStartHour(); h < 0 || h > 23 {
		return fmt.Errorf("timeline.workday_start_hour must be between 0 and 23, got %d", h)
	}
	return nil
}

// Location returns the configured timeline zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timeline.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timeline.Timezone)
}

// WorkdayStartHour returns the configured hour single-day timelines start at.
func (c *Config) WorkdayStartHour() int {
	if c.Timeline.WorkdayStartHour == nil {
		return timeline.DefaultWorkdayStartHour
	}
	return *c.Timeline.WorkdayStartHour
}

// Policy returns the parsed project update policy. Validate must have passed.
func (c *Config) Policy() tracker.ProjectUpdatePolicy {
	p, _ := tracker.ParseProjectUpdatePolicy(c.Webhook.ProjectUpdate)
	return p
}

// APIConfig builds the HTTP API configuration. Validate must have passed.
func (c *Config) APIConfig(jwtSecret []byte) *api.Config {
	dur := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return &api.Config{
		Address:          c.Server.HTTPAddress,
		JWTSecret:        jwtSecret,
		HTTPTLSEnabled:   c.Server.TLS.Enabled,
		HTTPTLSCertFile:  c.Server.TLS.CertFile,
		HTTPTLSKeyFile:   c.Server.TLS.KeyFile,
		AccessTokenTTL:   dur(c.Auth.AccessTokenTTL),
		RefreshTokenTTL:  dur(c.Auth.RefreshTokenTTL),
		RateLimitPerIP:   c.Auth.LoginRateLimit,
		RateLimitPerUser: c.Auth.APIRateLimit,
		WebhookRateLimit: c.Webhook.RateLimit,
		WebhookBurst:     c.Webhook.Burst,
		LockoutThreshold: c.Auth.LockoutThreshold,
		LockoutDuration:  dur(c.Auth.LockoutDuration),
		Verbose:          c.Verbose,
	}
}

// jwtSecret reads the signing key from the environment.
func jwtSecret() ([]byte, error) {
	s := os.Getenv(jwtSecretEnv)
	if s == "" {
		return nil, fmt.Errorf("%s environment variable is required", jwtSecretEnv)
	}
	if len(s) < minJWTSecretLength {
		return nil, fmt.Errorf("%s must be at least %d characters", jwtSecretEnv, minJWTSecretLength)
	}
	return []byte(s), nil
}
