package config

import (
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Cache        CacheConfig        `yaml:"cache"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" +
		strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

type RateLimitConfig struct {
	// Backend selects the counter store: "memory" or "redis".
	Backend       string           `yaml:"backend"`
	IPPerMinute   int64            `yaml:"ip_per_minute"`
	SweepInterval time.Duration    `yaml:"sweep_interval"`
	TierQuotas    map[string]int64 `yaml:"tier_quotas"` // per hour
}

type CacheConfig struct {
	// Backend selects the response cache store: "memory" or "postgres".
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type OrchestratorConfig struct {
	DefaultProvider string        `yaml:"default_provider"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	MaxImageBytes   int64         `yaml:"max_image_bytes"`
	MaxTextChars    int           `yaml:"max_text_chars"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "ethiscan",
			User:            "ethiscan",
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			IPPerMinute:   30,
			SweepInterval: time.Minute,
			TierQuotas:    map[string]int64{"free": 10, "basic": 50, "pro": 200},
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           7 * 24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			DefaultProvider: "gemini",
			DefaultTimeout:  30 * time.Second,
			MaxImageBytes:   10 << 20,
			MaxTextChars:    5000,
		},
	}
}
