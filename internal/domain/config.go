package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Profile names the preset the config was built from.
	Profile Profile `json:"profile"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Worker     WorkerConfig     `json:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// Profile selects a deployment preset.
type Profile string

const (
	// ProfileStandalone runs everything in one process: SQLite, LRU, channels.
	ProfileStandalone Profile = "standalone"

	// ProfileDistributed uses PostgreSQL, Redis and NATS.
	ProfileDistributed Profile = "distributed"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// WorkerConfig controls the asynchronous calculation worker.
type WorkerConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns the standalone configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Profile: ProfileStandalone,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./rebate.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			LookupTTL:    time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Worker: WorkerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DistributedConfig returns a configuration backed by PostgreSQL, Redis and NATS.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileDistributed
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "rebate",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       30 * time.Second,
		LookupTTL:      5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "rebate-workers",
	}
	return cfg
}

// LoadConfig picks a preset from REBATE_PROFILE and overlays the environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if Profile(os.Getenv("REBATE_PROFILE")) == ProfileDistributed {
		cfg = DistributedConfig()
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from REBATE_* environment variables.
// Unset variables leave the corresponding field unchanged.
func ApplyEnv(cfg *Config) error {
	var errs []string

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	setString("REBATE_HOST", &cfg.Server.Host)
	setInt("REBATE_PORT", &cfg.Server.Port)

	setString("REBATE_DB_DRIVER", &cfg.Repository.Driver)
	setString("REBATE_SQLITE_PATH", &cfg.Repository.SQLitePath)
	setString("REBATE_PG_HOST", &cfg.Repository.PostgresHost)
	setInt("REBATE_PG_PORT", &cfg.Repository.PostgresPort)
	setString("REBATE_PG_USER", &cfg.Repository.PostgresUser)
	setString("REBATE_PG_PASSWORD", &cfg.Repository.PostgresPassword)
	setString("REBATE_PG_DB", &cfg.Repository.PostgresDB)
	setString("REBATE_PG_SSLMODE", &cfg.Repository.PostgresSSLMode)

	setString("REBATE_CACHE_TYPE", &cfg.Cache.Type)
	setString("REBATE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	setString("REBATE_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	setDuration("REBATE_CACHE_TTL", &cfg.Cache.LookupTTL)

	setString("REBATE_BUS_TYPE", &cfg.EventBus.Type)
	setString("REBATE_NATS_URL", &cfg.EventBus.NATSUrl)
	setString("REBATE_NATS_TOKEN", &cfg.EventBus.NATSToken)

	setBool("REBATE_WORKER", &cfg.Worker.Enabled)

	setString("REBATE_LOG_LEVEL", &cfg.Logging.Level)
	setString("REBATE_LOG_FORMAT", &cfg.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
