package config

import (
	"path/filepath"

	"modbot-keeper/internal/env"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. ":8998")
 * @property {string} mode - Application mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address for metrics
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
}

/**
 * Hot reload configuration
 * @property {int} hook_timeout_seconds - Max seconds a single reload hook may run
 * @property {int} debounce_ms - Debounce window for file change bursts
 */
type ReloadConfig struct {
	HookTimeoutSeconds int `mapstructure:"hook_timeout_seconds"`
	DebounceMs         int `mapstructure:"debounce_ms"`
}

/**
 * File watcher configuration
 * @property {[]string} config_files - Watched subsystem configuration files
 * @property {string} commands_dir - Command source directory
 */
type WatcherConfig struct {
	ConfigFiles []string `mapstructure:"config_files"`
	CommandsDir string   `mapstructure:"commands_dir"`
}

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Reload  ReloadConfig  `mapstructure:"reload"`
	Watcher WatcherConfig `mapstructure:"watcher"`
}

/**
 * Load application configuration from YAML file
 */
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(env.ModbotDir)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var Config AppConfig

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:8998"
	}
	if cfg.Reload.HookTimeoutSeconds <= 0 {
		cfg.Reload.HookTimeoutSeconds = 30
	}
	if cfg.Reload.DebounceMs <= 0 {
		cfg.Reload.DebounceMs = 500
	}
	if cfg.Watcher.CommandsDir == "" {
		cfg.Watcher.CommandsDir = filepath.Join(env.ModbotDir, "commands")
	}
	if len(cfg.Watcher.ConfigFiles) == 0 {
		cfg.Watcher.ConfigFiles = []string{
			filepath.Join(env.ModbotDir, "config.yaml"),
			filepath.Join(env.ModbotDir, "warnings.json"),
			filepath.Join(env.ModbotDir, "banlist.json"),
			filepath.Join(env.ModbotDir, "blocklist.json"),
			filepath.Join(env.ModbotDir, "antiraid.yaml"),
			filepath.Join(env.ModbotDir, "pii.yaml"),
		}
	}
	return cfg
}

/**
 * Reload application configuration from disk
 * @returns {error} Returns error if reload fails, nil on success
 * @description
 * - Re-reads config.yaml through viper
 * - Replaces the global Config on success
 * - Keeps the old configuration when reload fails
 */
func Reload() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	Config = *cfg
	collectConfig(&Config)
	return nil
}

func init() {
	cfg, err := LoadConfig()
	if err == nil {
		Config = *cfg
	}
	collectConfig(&Config)
}
