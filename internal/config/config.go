package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port                string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin       string        `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	DatabaseAutoMigrate bool          `envconfig:"DATABASE_AUTO_MIGRATE" default:"false"`
	RedisAddr           string        `envconfig:"REDIS_ADDR"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD"`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	SettingsCacheTTL    time.Duration `envconfig:"SETTINGS_CACHE_TTL" default:"60s"`
	AuditAsync          bool          `envconfig:"AUDIT_ASYNC" default:"false"`
	DefaultTenantID     string        `envconfig:"DEFAULT_TENANT_ID" default:"main-tenant"`
	AuthSecret          string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL      time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	ManagerPIN          string        `envconfig:"MANAGER_PIN"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment      bool          `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	if cfg.SettingsCacheTTL <= 0 {
		cfg.SettingsCacheTTL = time.Minute
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
