package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	mu     sync.Mutex
	active *viper.Viper
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := registerDefaults(v); err != nil {
		return nil, err
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/doc-sanitizer/")
	v.AddConfigPath("$HOME/.doc-sanitizer/")

	// Environment variable overrides
	v.SetEnvPrefix("DOCSAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	active = v
	mu.Unlock()

	return config, nil
}

// registerDefaults makes every key of GetDefaults known to viper so that
// environment overrides apply to keys absent from the config file
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(GetDefaults())
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, value)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Profiles.Path = ExpandPath(config.Profiles.Path)
	config.Files.Dir = ExpandPath(config.Files.Dir)
	config.Logging.File.Path = ExpandPath(config.Logging.File.Path)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Profiles.Backend {
	case "file":
		if config.Profiles.Path == "" {
			return fmt.Errorf("profiles.path is required for the file backend")
		}
	case "postgres":
		if config.Profiles.DatabaseURL == "" {
			return fmt.Errorf("profiles.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid profiles backend: %s (must be file or postgres)", config.Profiles.Backend)
	}

	if config.Files.Dir == "" {
		return fmt.Errorf("files.dir is required")
	}
	if config.Files.TTL <= 0 {
		return fmt.Errorf("invalid files ttl: %s", config.Files.TTL)
	}
	if config.Files.CleanupInterval <= 0 {
		return fmt.Errorf("invalid files cleanup interval: %s", config.Files.CleanupInterval)
	}
	if config.Files.MaxSize <= 0 {
		return fmt.Errorf("invalid files max size: %d", config.Files.MaxSize)
	}

	if config.Upstream.Ollama == "" {
		return fmt.Errorf("upstream.ollama is required")
	}
	if config.Upstream.Model == "" {
		return fmt.Errorf("upstream.model is required")
	}
	if config.Upstream.RateLimit < 0 {
		return fmt.Errorf("invalid upstream rate limit: %v", config.Upstream.RateLimit)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when the cache is enabled")
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMinute)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file loaded last for changes.
// Invalid edits are reported to onError and the previous config stays in effect.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := active
	mu.Unlock()

	if v == nil {
		return fmt.Errorf("configuration has not been loaded")
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
