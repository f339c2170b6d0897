package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the listen address and Fiber prefork mode.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Prefork bool   `yaml:"prefork"`
}

// LoggerConfig controls structured logging and file rotation.
type LoggerConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Level      string `yaml:"level"`
}

// LimitsConfig caps inbound request sizes at the transport layer.
type LimitsConfig struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
}

// RasterConfig configures the external rasterization engine.
type RasterConfig struct {
	// Binary is the poppler pdftoppm executable; resolved through PATH
	// when not absolute.
	Binary      string `yaml:"binary"`
	DPI         int    `yaml:"dpi"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RateLimiterConfig configures the per-client request limiter.
type RateLimiterConfig struct {
	EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	UserLimit         int           `yaml:"user_limit"`
	Interval          time.Duration `yaml:"interval"`
}

// CacheConfig points the rate limiter at a Redis store. When RedisHost is
// empty the limiter falls back to in-process memory storage.
type CacheConfig struct {
	RedisHost   string `yaml:"redis_host"`
	RateLimitDB int    `yaml:"rate_limit_db"`
}

// Config is the full service configuration, loaded once at startup and
// passed explicitly into the app and handlers.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logger      LoggerConfig      `yaml:"logger"`
	Limits      LimitsConfig      `yaml:"limits"`
	Raster      RasterConfig      `yaml:"raster"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Cache       CacheConfig       `yaml:"cache"`
}

// AppConfig holds the last loaded configuration for packages that cannot
// receive it by injection (middleware constructed lazily).
var AppConfig Config

// GetConfig returns the last configuration loaded via LoadConfig.
func GetConfig() Config {
	return AppConfig
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "",
			Port: ":8080",
		},
		Logger: LoggerConfig{
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Level:      "info",
		},
		Limits: LimitsConfig{
			MaxPayloadBytes: 50 * 1024 * 1024,
		},
		Raster: RasterConfig{
			Binary:      "pdftoppm",
			DPI:         150,
			TimeoutSecs: 120,
		},
		RateLimiter: RateLimiterConfig{
			Interval: time.Minute,
		},
	}
}

// LoadConfig reads the YAML config from CONFIG_PATH (default config.yaml).
// A missing file is not an error: the service runs on defaults so the
// container image needs no mounted config.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads and validates the config at path, applying defaults
// for absent values.
func LoadConfigFrom(path string) Config {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			panic(fmt.Sprintf("read config %s: %v", path, err))
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("parse config %s: %v", path, err))
	}

	applyDefaults(&cfg)
	validateConfig(&cfg)

	AppConfig = cfg
	return cfg
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = def.Logger.Level
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits.MaxPayloadBytes = def.Limits.MaxPayloadBytes
	}
	if cfg.Raster.Binary == "" {
		cfg.Raster.Binary = def.Raster.Binary
	}
	if cfg.Raster.DPI == 0 {
		cfg.Raster.DPI = def.Raster.DPI
	}
	if cfg.Raster.TimeoutSecs == 0 {
		cfg.Raster.TimeoutSecs = def.Raster.TimeoutSecs
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = def.RateLimiter.Interval
	}
}

func validateConfig(cfg *Config) {
	if cfg.Limits.MaxPayloadBytes < 0 {
		panic("limits.max_payload_bytes must not be negative")
	}
	if cfg.Raster.DPI < 0 {
		panic("raster.dpi must not be negative")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		panic("rate_limiter.user_limit must not be negative")
	}
}
