package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Pools       PoolsConfig       `yaml:"pools"`
	Fleet       FleetConfig       `yaml:"fleet"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Engineering EngineeringConfig `yaml:"engineering"`
}

// ServerConfig holds HTTP server configuration. HOST/API_PORT bind it.
type ServerConfig struct {
	Host            string              `yaml:"host"`
	Port            int                 `yaml:"port"`
	ReadTimeout     time.Duration       `yaml:"read_timeout"`
	WriteTimeout    time.Duration       `yaml:"write_timeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	RequestLimits   ServerRequestLimits `yaml:"request_limits"`
}

// ServerRequestLimits defines request size limits.
type ServerRequestLimits struct {
	MaxBodySize int64 `yaml:"max_body_size"`
}

// PersistenceConfig documents the DATABASE_URL contract. The core data
// plane treats persistence as an external collaborator (spec §1); the
// in-memory PoolRegistry adapter stands in for it in this repository, so
// DatabaseURL is carried for environment-contract parity but is not
// itself dialled.
type PersistenceConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// PoolsConfig carries the three virtual model names and the pool policy
// defaults applied when a pool is auto-materialised.
type PoolsConfig struct {
	VirtualModelTool     string `yaml:"virtual_model_tool"`
	VirtualModelNormal   string `yaml:"virtual_model_normal"`
	VirtualModelAdvanced string `yaml:"virtual_model_advanced"`

	DefaultCooldownSeconds int `yaml:"default_cooldown_seconds"`
	MaxRetriesPerProvider  int `yaml:"max_retries_per_provider"`
	MaxLogsCount           int `yaml:"max_logs_count"`
}

// FleetConfig seeds the in-memory PoolRegistry on startup with the
// providers and endpoints a real deployment would otherwise manage
// through the external admin CRUD surface.
type FleetConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one upstream account and the endpoints
// (concrete models) it exposes into pools.
type ProviderConfig struct {
	Name      string           `yaml:"name"`
	BaseURL   string           `yaml:"base_url"`
	APIKey    string           `yaml:"api_key"`
	Format    string           `yaml:"format"` // "openai" | "anthropic"
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig is one (provider, concrete-model) assignment into a pool.
type EndpointConfig struct {
	ModelID            string `yaml:"model_id"`
	Pool               string `yaml:"pool"` // "tool" | "normal" | "advanced"
	Weight             int    `yaml:"weight"`
	MinIntervalSeconds int    `yaml:"min_interval_seconds"`
	Enabled            bool   `yaml:"enabled"`
}

// RedisConfig configures the optional denormalized stats mirror.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging configuration. LOG_LEVEL overrides Level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EngineeringConfig holds development/debugging configuration.
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`
	EnableProfiler bool `yaml:"enable_profiler"`
}
