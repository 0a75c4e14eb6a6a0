package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9090
  base_url: https://santa.example
store:
  type: redis
  redis:
    addr: redis:6379
links:
  mode: stateless
  ttl: 10m
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SMTP_USER", "santa")
	t.Setenv("SMTP_PASS", "hohoho")
	t.Setenv("LINK_TTL", "15m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.BaseURL != "https://santa.example" {
		t.Errorf("server: %+v", cfg.Server)
	}
	if cfg.Store.Type != StoreRedis || cfg.Store.Redis.Addr != "redis:6379" {
		t.Errorf("store: %+v", cfg.Store)
	}
	if cfg.Links.Mode != ModeStateless || cfg.Links.TTL != 15*time.Minute {
		t.Errorf("links: %+v", cfg.Links)
	}
	if !cfg.MailConfigured() {
		t.Error("mail should be configured from env")
	}
	if cfg.Mail.Host != "smtp.gmail.com" {
		t.Errorf("mail host default lost: %q", cfg.Mail.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("got port %d", cfg.Server.Port)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"store type", func(c *Config) { c.Store.Type = "s3" }},
		{"redis addr", func(c *Config) { c.Store.Type = StoreRedis; c.Store.Redis.Addr = "" }},
		{"retention", func(c *Config) { c.Store.Retention = 0 }},
		{"mode", func(c *Config) { c.Links.Mode = "fax" }},
		{"stored without store", func(c *Config) { c.Store.Type = StoreNone }},
		{"ttl", func(c *Config) { c.Links.TTL = 0 }},
		{"max ttl", func(c *Config) { c.Links.MaxTTL = time.Second }},
		{"rate limit", func(c *Config) { c.RateLimit.RevealPerMin = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	stateless := Default()
	stateless.Store.Type = StoreNone
	stateless.Links.Mode = ModeStateless
	if err := stateless.Validate(); err != nil {
		t.Errorf("stateless without store should be valid: %v", err)
	}
}

func TestClampTTL(t *testing.T) {
	cfg := Default()

	if got := cfg.ClampTTL(0); got != time.Minute {
		t.Errorf("default: %v", got)
	}
	if got := cfg.ClampTTL(time.Hour); got != time.Hour {
		t.Errorf("in range: %v", got)
	}
	if got := cfg.ClampTTL(365 * 24 * time.Hour); got != cfg.Links.MaxTTL {
		t.Errorf("clamped: %v", got)
	}
}
