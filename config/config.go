package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Poll     PollConfig
	Redis    RedisConfig
	Database DatabaseConfig
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// ServerConfig holds HTTP and WebSocket server settings.
type ServerConfig struct {
	Port               string `env:"PORT" env-default:"8080"`
	ReadTimeout        int    `env:"READ_TIMEOUT_SEC" env-default:"30"`
	WriteTimeout       int    `env:"WRITE_TIMEOUT_SEC" env-default:"30"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"` // comma-separated, or "*"
	WSSendBuffer       int    `env:"WS_SEND_BUFFER" env-default:"256"`
	WSMaxMessageBytes  int64  `env:"WS_MAX_MESSAGE_BYTES" env-default:"65536"`
}

// PollConfig holds session and poll defaults.
type PollConfig struct {
	DefaultSessionKey   string `env:"DEFAULT_SESSION_KEY" env-default:"default"`
	DefaultTimeLimitSec int    `env:"DEFAULT_POLL_TIME_LIMIT_SEC" env-default:"60"`
	MaxTimeLimitSec     int    `env:"MAX_POLL_TIME_LIMIT_SEC" env-default:"3600"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables the event
// mirror and the archive queue.
type RedisConfig struct {
	Addr         string `env:"REDIS_ADDR"`
	Password     string `env:"REDIS_PASSWORD"`
	DB           int    `env:"REDIS_DB" env-default:"0"`
	MirrorBuffer int    `env:"REDIS_MIRROR_BUFFER" env-default:"1024"`
}

// DatabaseConfig holds PostgreSQL connection settings for the archive worker.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"` // if set, used as-is (e.g. postgres://localhost:5432/livepoll?sslmode=disable)
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `env:"DB_NAME" env-default:"livepoll"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" env-default:"4"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// DefaultTimeLimit returns the poll time limit used when a request omits one.
func (c PollConfig) DefaultTimeLimit() time.Duration {
	return time.Duration(c.DefaultTimeLimitSec) * time.Second
}

// MaxTimeLimit returns the upper bound applied to requested poll time limits.
func (c PollConfig) MaxTimeLimit() time.Duration {
	return time.Duration(c.MaxTimeLimitSec) * time.Second
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.Poll.DefaultTimeLimitSec <= 0 {
		return nil, fmt.Errorf("DEFAULT_POLL_TIME_LIMIT_SEC must be positive, got %d", cfg.Poll.DefaultTimeLimitSec)
	}
	if cfg.Poll.MaxTimeLimitSec < cfg.Poll.DefaultTimeLimitSec {
		return nil, fmt.Errorf("MAX_POLL_TIME_LIMIT_SEC (%d) is below DEFAULT_POLL_TIME_LIMIT_SEC (%d)",
			cfg.Poll.MaxTimeLimitSec, cfg.Poll.DefaultTimeLimitSec)
	}
	return &cfg, nil
}
