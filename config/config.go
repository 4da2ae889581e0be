// Package config reads the service configuration.
//
// Values come from the [api] section of an INI style file and may then be
// overridden by PANTRY_ prefixed environment variables, so that
// listen_port in the file and PANTRY_LISTEN_PORT in the environment set
// the same value. Durations are whole seconds in both places.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/config"

	"github.com/microcosm-collective/pantry/breaker"
	"github.com/microcosm-collective/pantry/cache"
	h "github.com/microcosm-collective/pantry/helpers"
)

// ConfigFilePath is the path to the config file
const ConfigFilePath string = "/etc/pantry/api.conf"

// APISection is the [api] section of the config file
const APISection string = "api"

// EnvPrefix is prepended to the environment variable of every key
const EnvPrefix string = "PANTRY_"

// Config file keys
const (
	Environment = "environment"

	ListenPort     = "listen_port"
	MaxConnections = "max_connections"
	Workers        = "workers"

	DatabaseDriver      = "database_driver"
	DatabaseHost        = "database_host"
	DatabasePort        = "database_port"
	DatabaseName        = "database_database"
	DatabaseUsername    = "database_username"
	DatabasePassword    = "database_password"
	DatabasePath        = "database_path"
	DatabaseMaxOpen     = "database_max_open"
	DatabaseMinIdle     = "database_min_idle"
	DatabaseMaxLifetime = "database_max_lifetime"

	CacheBackend     = "cache_backend"
	CacheHost        = "cache_host"
	CachePort        = "cache_port"
	CacheMaxOpen     = "cache_max_open"
	CacheMinIdle     = "cache_min_idle"
	CacheMaxLifetime = "cache_max_lifetime"
	CachePoolTimeout = "cache_pool_timeout"

	BreakerConsecutiveFailures = "breaker_consecutive_failures"
	BreakerFailureRate         = "breaker_failure_rate"
	BreakerMinRequests         = "breaker_min_requests"
	BreakerWindow              = "breaker_window"
	BreakerHalfOpenTrials      = "breaker_half_open_trials"
	BreakerMinCoolDown         = "breaker_min_cool_down"
	BreakerMaxCoolDown         = "breaker_max_cool_down"

	TracingEndpoint = "tracing_endpoint"
)

// Config holds every setting of the service
type Config struct {
	Environment string `env:"ENVIRONMENT"`

	ListenPort     int64 `env:"LISTEN_PORT"`
	MaxConnections int   `env:"MAX_CONNECTIONS"`
	Workers        int   `env:"WORKERS"`

	DatabaseDriver      string `env:"DATABASE_DRIVER"`
	DatabaseHost        string `env:"DATABASE_HOST"`
	DatabasePort        int64  `env:"DATABASE_PORT"`
	DatabaseName        string `env:"DATABASE_DATABASE"`
	DatabaseUsername    string `env:"DATABASE_USERNAME"`
	DatabasePassword    string `env:"DATABASE_PASSWORD"`
	DatabasePath        string `env:"DATABASE_PATH"`
	DatabaseMaxOpen     int    `env:"DATABASE_MAX_OPEN"`
	DatabaseMinIdle     int    `env:"DATABASE_MIN_IDLE"`
	DatabaseMaxLifetime int    `env:"DATABASE_MAX_LIFETIME"`

	CacheBackend     string `env:"CACHE_BACKEND"`
	CacheHost        string `env:"CACHE_HOST"`
	CachePort        int64  `env:"CACHE_PORT"`
	CacheMaxOpen     int    `env:"CACHE_MAX_OPEN"`
	CacheMinIdle     int    `env:"CACHE_MIN_IDLE"`
	CacheMaxLifetime int    `env:"CACHE_MAX_LIFETIME"`
	CachePoolTimeout int    `env:"CACHE_POOL_TIMEOUT"`

	BreakerConsecutiveFailures int     `env:"BREAKER_CONSECUTIVE_FAILURES"`
	BreakerFailureRate         float64 `env:"BREAKER_FAILURE_RATE"`
	BreakerMinRequests         int     `env:"BREAKER_MIN_REQUESTS"`
	BreakerWindow              int     `env:"BREAKER_WINDOW"`
	BreakerHalfOpenTrials      int     `env:"BREAKER_HALF_OPEN_TRIALS"`
	BreakerMinCoolDown         int     `env:"BREAKER_MIN_COOL_DOWN"`
	BreakerMaxCoolDown         int     `env:"BREAKER_MAX_COOL_DOWN"`

	TracingEndpoint string `env:"TRACING_ENDPOINT"`
}

// Default returns the configuration used for anything not set by the file
// or the environment
func Default() *Config {
	bs := breaker.DefaultSettings("")
	cc := cache.DefaultConfig()

	return &Config{
		Environment: "dev",

		ListenPort:     8080,
		MaxConnections: 1024,
		Workers:        32,

		DatabaseDriver:      h.DriverPostgres,
		DatabaseHost:        "localhost",
		DatabasePort:        5432,
		DatabaseName:        "pantry",
		DatabaseUsername:    "pantry",
		DatabaseMaxOpen:     16,
		DatabaseMinIdle:     8,
		DatabaseMaxLifetime: 60,

		CacheBackend:     cache.BackendRedis,
		CacheHost:        cc.Host,
		CachePort:        cc.Port,
		CacheMaxOpen:     cc.MaxOpen,
		CacheMinIdle:     cc.MinIdle,
		CacheMaxLifetime: int(cc.MaxLifetime / time.Second),
		CachePoolTimeout: int(cc.PoolTimeout / time.Second),

		BreakerConsecutiveFailures: int(bs.ConsecutiveFailures),
		BreakerFailureRate:         bs.FailureRate,
		BreakerMinRequests:         int(bs.MinRequests),
		BreakerWindow:              int(bs.Window / time.Second),
		BreakerHalfOpenTrials:      int(bs.MaxTrials),
		BreakerMinCoolDown:         int(bs.MinCoolDown / time.Second),
		BreakerMaxCoolDown:         int(bs.MaxCoolDown / time.Second),
	}
}

// Load reads the config file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		c, err := config.ReadDefault(path)
		if err != nil {
			return nil, fmt.Errorf("config.ReadDefault(%s) %w", path, err)
		}

		err = cfg.readFile(c)
		if err != nil {
			return nil, err
		}
	}

	err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) readFile(c *config.Config) error {
	strs := map[string]*string{
		Environment:      &cfg.Environment,
		DatabaseDriver:   &cfg.DatabaseDriver,
		DatabaseHost:     &cfg.DatabaseHost,
		DatabaseName:     &cfg.DatabaseName,
		DatabaseUsername: &cfg.DatabaseUsername,
		DatabasePassword: &cfg.DatabasePassword,
		DatabasePath:     &cfg.DatabasePath,
		CacheBackend:     &cfg.CacheBackend,
		CacheHost:        &cfg.CacheHost,
		TracingEndpoint:  &cfg.TracingEndpoint,
	}
	for key, dst := range strs {
		if !c.HasOption(APISection, key) {
			continue
		}
		s, err := c.String(APISection, key)
		if err != nil {
			return fmt.Errorf("c.String(%s) %w", key, err)
		}
		*dst = s
	}

	int64s := map[string]*int64{
		ListenPort:   &cfg.ListenPort,
		DatabasePort: &cfg.DatabasePort,
		CachePort:    &cfg.CachePort,
	}
	for key, dst := range int64s {
		if !c.HasOption(APISection, key) {
			continue
		}
		i, err := c.Int(APISection, key)
		if err != nil {
			return fmt.Errorf("c.Int(%s) %w", key, err)
		}
		*dst = int64(i)
	}

	ints := map[string]*int{
		MaxConnections:             &cfg.MaxConnections,
		Workers:                    &cfg.Workers,
		DatabaseMaxOpen:            &cfg.DatabaseMaxOpen,
		DatabaseMinIdle:            &cfg.DatabaseMinIdle,
		DatabaseMaxLifetime:        &cfg.DatabaseMaxLifetime,
		CacheMaxOpen:               &cfg.CacheMaxOpen,
		CacheMinIdle:               &cfg.CacheMinIdle,
		CacheMaxLifetime:           &cfg.CacheMaxLifetime,
		CachePoolTimeout:           &cfg.CachePoolTimeout,
		BreakerConsecutiveFailures: &cfg.BreakerConsecutiveFailures,
		BreakerMinRequests:         &cfg.BreakerMinRequests,
		BreakerWindow:              &cfg.BreakerWindow,
		BreakerHalfOpenTrials:      &cfg.BreakerHalfOpenTrials,
		BreakerMinCoolDown:         &cfg.BreakerMinCoolDown,
		BreakerMaxCoolDown:         &cfg.BreakerMaxCoolDown,
	}
	for key, dst := range ints {
		if !c.HasOption(APISection, key) {
			continue
		}
		i, err := c.Int(APISection, key)
		if err != nil {
			return fmt.Errorf("c.Int(%s) %w", key, err)
		}
		*dst = i
	}

	if c.HasOption(APISection, BreakerFailureRate) {
		f, err := c.Float(APISection, BreakerFailureRate)
		if err != nil {
			return fmt.Errorf("c.Float(%s) %w", BreakerFailureRate, err)
		}
		cfg.BreakerFailureRate = f
	}

	return nil
}

// Validate rejects settings that cannot describe a working service
func (cfg *Config) Validate() error {
	if cfg.ListenPort < 1 || cfg.ListenPort > 65535 {
		return fmt.Errorf("%s (%d) is not a valid port", ListenPort, cfg.ListenPort)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("%s must be at least 1", MaxConnections)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%s must be at least 1", Workers)
	}

	switch cfg.DatabaseDriver {
	case h.DriverPostgres:
		if cfg.DatabaseHost == "" || cfg.DatabaseName == "" {
			return fmt.Errorf("%s and %s are required for postgres", DatabaseHost, DatabaseName)
		}
	case h.DriverSQLite:
		if cfg.DatabasePath == "" {
			return fmt.Errorf("%s is required for sqlite", DatabasePath)
		}
	default:
		return fmt.Errorf("%s %q is not supported", DatabaseDriver, cfg.DatabaseDriver)
	}

	err := validatePool("database", cfg.DatabaseMaxOpen, cfg.DatabaseMinIdle, cfg.DatabaseMaxLifetime)
	if err != nil {
		return err
	}

	switch cfg.CacheBackend {
	case cache.BackendRedis, cache.BackendMemcache:
	default:
		return fmt.Errorf("%s %q is not supported", CacheBackend, cfg.CacheBackend)
	}

	err = validatePool("cache", cfg.CacheMaxOpen, cfg.CacheMinIdle, cfg.CacheMaxLifetime)
	if err != nil {
		return err
	}
	if cfg.CachePoolTimeout < 0 {
		return fmt.Errorf("%s cannot be negative", CachePoolTimeout)
	}

	if cfg.BreakerConsecutiveFailures < 1 {
		return fmt.Errorf("%s must be at least 1", BreakerConsecutiveFailures)
	}
	if cfg.BreakerFailureRate <= 0 || cfg.BreakerFailureRate > 1 {
		return fmt.Errorf("%s (%v) must be in (0, 1]", BreakerFailureRate, cfg.BreakerFailureRate)
	}
	if cfg.BreakerMinRequests < 1 {
		return fmt.Errorf("%s must be at least 1", BreakerMinRequests)
	}
	if cfg.BreakerWindow < 1 {
		return fmt.Errorf("%s must be at least 1 second", BreakerWindow)
	}
	if cfg.BreakerHalfOpenTrials < 1 {
		return fmt.Errorf("%s must be at least 1", BreakerHalfOpenTrials)
	}
	if cfg.BreakerMinCoolDown < 1 {
		return fmt.Errorf("%s must be at least 1 second", BreakerMinCoolDown)
	}
	if cfg.BreakerMaxCoolDown < cfg.BreakerMinCoolDown {
		return fmt.Errorf(
			"%s (%d) cannot be less than %s (%d)",
			BreakerMaxCoolDown,
			cfg.BreakerMaxCoolDown,
			BreakerMinCoolDown,
			cfg.BreakerMinCoolDown,
		)
	}

	return nil
}

func validatePool(name string, maxOpen int, minIdle int, maxLifetime int) error {
	if maxOpen < 1 {
		return fmt.Errorf("%s max open must be at least 1", name)
	}
	if minIdle < 0 || minIdle > maxOpen {
		return fmt.Errorf(
			"%s min idle (%d) must be between 0 and max open (%d)",
			name,
			minIdle,
			maxOpen,
		)
	}
	if maxLifetime < 0 {
		return fmt.Errorf("%s max lifetime cannot be negative", name)
	}
	return nil
}

// DBConfig returns the database connection settings
func (cfg *Config) DBConfig() h.DBConfig {
	return h.DBConfig{
		Driver:      cfg.DatabaseDriver,
		Host:        cfg.DatabaseHost,
		Port:        cfg.DatabasePort,
		Database:    cfg.DatabaseName,
		Username:    cfg.DatabaseUsername,
		Password:    cfg.DatabasePassword,
		Path:        cfg.DatabasePath,
		MaxOpen:     cfg.DatabaseMaxOpen,
		MinIdle:     cfg.DatabaseMinIdle,
		MaxLifetime: seconds(cfg.DatabaseMaxLifetime),
	}
}

// CacheConfig returns the cache pool settings
func (cfg *Config) CacheConfig() cache.Config {
	return cache.Config{
		Host:        cfg.CacheHost,
		Port:        cfg.CachePort,
		MaxOpen:     cfg.CacheMaxOpen,
		MinIdle:     cfg.CacheMinIdle,
		MaxLifetime: seconds(cfg.CacheMaxLifetime),
		PoolTimeout: seconds(cfg.CachePoolTimeout),
	}
}

// BreakerSettings returns the settings of the named breaker. Hooks are left
// for the caller to set.
func (cfg *Config) BreakerSettings(name string) breaker.Settings {
	return breaker.Settings{
		Name:                name,
		ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
		FailureRate:         cfg.BreakerFailureRate,
		MinRequests:         uint32(cfg.BreakerMinRequests),
		Window:              seconds(cfg.BreakerWindow),
		MaxTrials:           uint32(cfg.BreakerHalfOpenTrials),
		MinCoolDown:         seconds(cfg.BreakerMinCoolDown),
		MaxCoolDown:         seconds(cfg.BreakerMaxCoolDown),
	}
}

func seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
