package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 8080
	DefaultHost = "0.0.0.0"

	DefaultFileWriteDelay = 150 * time.Millisecond // small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults, matching
// the environment contract's documented fallbacks.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute, // long responses from streaming LLMs
			ShutdownTimeout: 10 * time.Second,
			RequestLimits: ServerRequestLimits{
				MaxBodySize: 10 << 20,
			},
		},
		Pools: PoolsConfig{
			VirtualModelTool:       "claude-haiku-4.5",
			VirtualModelNormal:     "sonnet",
			VirtualModelAdvanced:   "claude-opus-4",
			DefaultCooldownSeconds: 30,
			MaxRetriesPerProvider:  3,
			MaxLogsCount:           10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from .env, a YAML file, and environment
// variables, in that precedence order (env wins). onConfigChange, if
// non-nil, fires on a debounced file-watch event.
func Load(onConfigChange func()) (*Config, error) {
	_ = godotenv.Load() // optional local .env, ignored if absent

	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvAliases()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("GATEWAY_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	// Decode by the yaml tags so multi-word keys (virtual_model_tool, ...)
	// reach their fields; mapstructure's default name matching does not.
	if err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyBareEnvOverrides(cfg)

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // ignore rapid-fire duplicate events
			}
			lastReload = now

			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}

	return cfg, nil
}

// bindEnvAliases wires the spec's bare environment variable names (HOST,
// API_PORT, ...) alongside the GATEWAY_-prefixed ones viper binds
// automatically, since the documented contract doesn't use the prefix.
func bindEnvAliases() {
	aliases := map[string]string{
		"server.host":                      "HOST",
		"server.port":                      "API_PORT",
		"persistence.database_url":         "DATABASE_URL",
		"pools.virtual_model_tool":         "VIRTUAL_MODEL_TOOL",
		"pools.virtual_model_normal":       "VIRTUAL_MODEL_NORMAL",
		"pools.virtual_model_advanced":     "VIRTUAL_MODEL_ADVANCED",
		"pools.default_cooldown_seconds":   "DEFAULT_COOLDOWN_SECONDS",
		"pools.max_retries_per_provider":   "MAX_RETRIES_PER_PROVIDER",
		"pools.max_logs_count":             "MAX_LOGS_COUNT",
		"logging.level":                    "LOG_LEVEL",
	}
	for key, env := range aliases {
		_ = viper.BindEnv(key, env)
	}
}

// applyBareEnvOverrides catches the handful of settings viper's struct tags
// won't reach directly (numeric env vars bound to already-populated
// defaults need an explicit re-check).
func applyBareEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
}
