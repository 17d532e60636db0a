// Package config loads wutboard settings from a YAML file and WUT_* environment
// variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Auth     AuthConfig     `yaml:"auth"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
}

// BackendConfig points at the WUT estimation backend.
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst        int           `yaml:"burst"`
	DefaultModel string        `yaml:"default_model"`
}

// AuthConfig describes the identity provider.
type AuthConfig struct {
	Issuer       string   `yaml:"issuer"`
	Audience     string   `yaml:"audience"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	// AnalyzePermission is the token permission required to request analyses.
	AnalyzePermission string `yaml:"analyze_permission"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	AnonymousReads bool   `yaml:"anonymous_reads"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type SnapshotConfig struct {
	Interval  time.Duration `yaml:"interval"` // 0 disables the recorder
	Retention time.Duration `yaml:"retention"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      30 * time.Second,
			RateLimit:    10,
			Burst:        20,
			DefaultModel: "gpt-4o",
		},
		Server: ServerConfig{Addr: ":8081"},
		Snapshot: SnapshotConfig{
			Interval:  time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns $HOME/.wutboard/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wutboard", "config.yaml")
	}
	return filepath.Join(home, ".wutboard", "config.yaml")
}

// Load reads path on top of the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	envString(lookup, &c.Backend.BaseURL, "WUT_BACKEND_URL")
	envString(lookup, &c.Backend.DefaultModel, "WUT_DEFAULT_MODEL")
	envString(lookup, &c.Auth.Issuer, "WUT_AUTH_ISSUER")
	envString(lookup, &c.Auth.Audience, "WUT_AUTH_AUDIENCE")
	envString(lookup, &c.Auth.TokenURL, "WUT_AUTH_TOKEN_URL")
	envString(lookup, &c.Auth.ClientID, "WUT_AUTH_CLIENT_ID")
	envString(lookup, &c.Auth.ClientSecret, "WUT_AUTH_CLIENT_SECRET")
	envString(lookup, &c.Auth.AnalyzePermission, "WUT_AUTH_ANALYZE_PERMISSION")
	envString(lookup, &c.Server.Addr, "WUT_SERVER_ADDR")
	envString(lookup, &c.Database.URL, "WUT_DATABASE_URL")
	envString(lookup, &c.Log.Level, "WUT_LOG_LEVEL")
	envString(lookup, &c.Log.Format, "WUT_LOG_FORMAT")

	if v, ok := lookup("WUT_AUTH_SCOPES"); ok && v != "" {
		c.Auth.Scopes = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Auth.Scopes = append(c.Auth.Scopes, s)
			}
		}
	}

	if v, ok := lookup("WUT_ANONYMOUS_READS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WUT_ANONYMOUS_READS %q: %w", v, err)
		}
		c.Server.AnonymousReads = b
	}

	if err := envDuration(lookup, &c.Backend.Timeout, "WUT_BACKEND_TIMEOUT"); err != nil {
		return err
	}
	if err := envDuration(lookup, &c.Snapshot.Interval, "WUT_SNAPSHOT_INTERVAL"); err != nil {
		return err
	}
	if err := envDuration(lookup, &c.Snapshot.Retention, "WUT_SNAPSHOT_RETENTION"); err != nil {
		return err
	}
	if v, ok := lookup("WUT_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid WUT_RATE_LIMIT %q: %w", v, err)
		}
		c.Backend.RateLimit = f
	}
	if v, ok := lookup("WUT_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WUT_RATE_BURST %q: %w", v, err)
		}
		c.Backend.Burst = n
	}
	return nil
}

func envString(lookup lookupFunc, target *string, key string) {
	if v, ok := lookup(key); ok && v != "" {
		*target = v
	}
}

func envDuration(lookup lookupFunc, target *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*target = d
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend base_url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend rate_limit must not be negative, got %v", c.Backend.RateLimit)
	}
	if c.Backend.RateLimit > 0 && c.Backend.Burst < 1 {
		return fmt.Errorf("backend burst must be at least 1 when rate limiting, got %d", c.Backend.Burst)
	}
	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot interval must not be negative, got %s", c.Snapshot.Interval)
	}
	if c.Snapshot.Retention < 0 {
		return fmt.Errorf("snapshot retention must not be negative, got %s", c.Snapshot.Retention)
	}
	if c.Auth.AnalyzePermission != "" && c.Auth.Issuer == "" {
		return errors.New("auth analyze_permission requires auth issuer")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
