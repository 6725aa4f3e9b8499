package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for both services.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Imports  ImportsConfig  `yaml:"imports"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AdminPort      int      `yaml:"admin_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the configured host, defaulting to localhost.
func (c ServerConfig) GetHost() string {
	if c.Host == "" {
		return "localhost"
	}
	return c.Host
}

// DatabaseConfig holds the shared PostgreSQL pool settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds optional session-cache settings. An empty Addr disables
// the cache; session lookups then always hit PostgreSQL.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig holds session and admin-token settings.
type AuthConfig struct {
	CookieName      string `yaml:"cookie_name"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
	AdminJWTSecret  string `yaml:"admin_jwt_secret"`
	AdminTokenHours int    `yaml:"admin_token_hours"`
}

// ImportsConfig bounds CSV import requests.
type ImportsConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxRows        int   `yaml:"max_rows"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Server.AdminPort == 0 {
		cfg.Server.AdminPort = 8082
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:5174"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "crm_session"
	}
	if cfg.Auth.SessionTTLHours == 0 {
		cfg.Auth.SessionTTLHours = 24 * 7
	}
	if cfg.Auth.AdminTokenHours == 0 {
		cfg.Auth.AdminTokenHours = 12
	}
	if cfg.Imports.MaxUploadBytes == 0 {
		cfg.Imports.MaxUploadBytes = 20 << 20 // 20MB
	}
	if cfg.Imports.MaxRows == 0 {
		cfg.Imports.MaxRows = 50000
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. A .env
// file is loaded first if present, so secrets can live in .env locally and in
// real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Auth.AdminJWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.AdminPort = port
		}
	}

	return cfg, nil
}
