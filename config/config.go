// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Links     LinksConfig     `yaml:"links"`
	Mail      MailConfig      `yaml:"mail"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// StoreConfig selects the backing store once at startup. "none" disables
// the storage API for stateless-only deployments.
type StoreConfig struct {
	Type            string        `yaml:"type"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LinksConfig controls how matches are shared. TTL is the sealed expiry
// written into every envelope.
type LinksConfig struct {
	Mode   string        `yaml:"mode"`
	TTL    time.Duration `yaml:"ttl"`
	MaxTTL time.Duration `yaml:"max_ttl"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	RevealPerMin   int  `yaml:"reveal_per_min"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreNone   = "none"

	ModeStored    = "stored"
	ModeStateless = "stateless"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Type:            StoreMemory,
			Retention:       7 * 24 * time.Hour,
			CleanupInterval: 30 * time.Second,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Links: LinksConfig{
			Mode:   ModeStored,
			TTL:    1 * time.Minute,
			MaxTTL: 30 * 24 * time.Hour,
		},
		Mail: MailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
			From: `"Secret Santa" <noreply@secretsanta.com>`,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			RevealPerMin:   20,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	// Store
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("STORE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Store.Retention = d
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	// Links
	if v := os.Getenv("LINK_MODE"); v != "" {
		c.Links.Mode = v
	}
	if v := os.Getenv("LINK_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Links.TTL = ttl
		}
	}
	if v := os.Getenv("LINK_MAX_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Links.MaxTTL = ttl
		}
	}

	// Mail
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Mail.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = port
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		c.Mail.From = v
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_REVEAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RevealPerMin = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case StoreMemory, StoreRedis, StoreNone:
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'redis' or 'none')", c.Store.Type)
	}

	if c.Store.Type == StoreRedis && c.Store.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when store type is 'redis'")
	}

	if c.Store.Type != StoreNone && c.Store.Retention <= 0 {
		return fmt.Errorf("store retention must be positive")
	}

	if c.Store.Type == StoreMemory && c.Store.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}

	switch c.Links.Mode {
	case ModeStored, ModeStateless:
	default:
		return fmt.Errorf("invalid link mode: %s (must be 'stored' or 'stateless')", c.Links.Mode)
	}

	if c.Links.Mode == ModeStored && c.Store.Type == StoreNone {
		return fmt.Errorf("link mode 'stored' needs a store")
	}

	if c.Links.TTL <= 0 {
		return fmt.Errorf("links ttl must be positive")
	}

	if c.Links.MaxTTL < c.Links.TTL {
		return fmt.Errorf("max_ttl must be >= ttl")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.RevealPerMin < 1) {
		return fmt.Errorf("rate limits must be at least 1 per minute")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MailConfigured reports whether SMTP credentials are present.
func (c *Config) MailConfigured() bool {
	return c.Mail.Username != "" && c.Mail.Password != ""
}

// ClampTTL returns ttl bounded by the configured maximum, or the default
// ttl when ttl is not positive.
func (c *Config) ClampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.Links.TTL
	}
	if ttl > c.Links.MaxTTL {
		return c.Links.MaxTTL
	}
	return ttl
}
