package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://wut.example.com
  timeout: 5s
  rate_limit: 2.5
  burst: 4
auth:
  issuer: https://id.example.com
  scopes: [openid, wut]
snapshot:
  interval: 15m
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://wut.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2.5, cfg.Backend.RateLimit)
	assert.Equal(t, 4, cfg.Backend.Burst)
	assert.Equal(t, "gpt-4o", cfg.Backend.DefaultModel, "unset keys keep defaults")
	assert.Equal(t, []string{"openid", "wut"}, cfg.Auth.Scopes)
	assert.Equal(t, 15*time.Minute, cfg.Snapshot.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "backend: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend:\n  base_url: https://file.example.com\n")
	t.Setenv("WUT_BACKEND_URL", "https://env.example.com")
	t.Setenv("WUT_BACKEND_TIMEOUT", "12s")
	t.Setenv("WUT_AUTH_SCOPES", "a, b ,,c")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.Scopes)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WUT_RATE_LIMIT":        "0.5",
		"WUT_RATE_BURST":        "3",
		"WUT_SNAPSHOT_INTERVAL": "0s",
		"WUT_DATABASE_URL":      "postgres://localhost/wut",
		"WUT_DEFAULT_MODEL":     "",
		"WUT_ANONYMOUS_READS":   "true",

		"WUT_AUTH_ANALYZE_PERMISSION": "analyze:issues",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, 0.5, cfg.Backend.RateLimit)
	assert.Equal(t, 3, cfg.Backend.Burst)
	assert.Equal(t, time.Duration(0), cfg.Snapshot.Interval)
	assert.Equal(t, "postgres://localhost/wut", cfg.Database.URL)
	assert.Equal(t, "gpt-4o", cfg.Backend.DefaultModel, "empty values are ignored")
	assert.True(t, cfg.Server.AnonymousReads)
	assert.Equal(t, "analyze:issues", cfg.Auth.AnalyzePermission)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"WUT_BACKEND_TIMEOUT": "soon",
		"WUT_RATE_LIMIT":      "fast",
		"WUT_RATE_BURST":      "1.5",
		"WUT_ANONYMOUS_READS": "sometimes",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			}
			err := Default().applyEnv(lookup)
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.Backend.BaseURL = " " }, "base_url"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "timeout"},
		{"negative rate", func(c *Config) { c.Backend.RateLimit = -1 }, "rate_limit"},
		{"zero burst", func(c *Config) { c.Backend.Burst = 0 }, "burst"},
		{"rate limiting disabled", func(c *Config) { c.Backend.RateLimit = 0; c.Backend.Burst = 0 }, ""},
		{"negative interval", func(c *Config) { c.Snapshot.Interval = -time.Second }, "interval"},
		{"negative retention", func(c *Config) { c.Snapshot.Retention = -time.Second }, "retention"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"permission without issuer", func(c *Config) { c.Auth.AnalyzePermission = "analyze:issues" }, "analyze_permission"},
		{"permission with issuer", func(c *Config) {
			c.Auth.AnalyzePermission = "analyze:issues"
			c.Auth.Issuer = "https://id.example.com"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
