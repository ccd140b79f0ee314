package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/supercheck/core/internal/xerrors"
)

const defaultDirPermissions = 0o755

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads supercheck-core's configuration using viper, caching the result
// in a process-global so repeated calls (from independently-constructed
// components) see one consistent config.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// GetViper returns the shared viper instance for advanced access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper unmarshals a Config from a caller-supplied viper instance,
// bypassing the process-global cache. Tests use this to load an isolated
// config without clobbering other tests' state.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific TOML file, with defaults
// applied but no environment variable binding — used by the migrate and
// one-off CLI subcommands that take an explicit --config flag.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, xerrors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration and viper instance. Tests call this
// between cases that set different environment variables or config files.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("SUPERCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)

	SetDefaults(v)

	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig walks up from the working directory looking for
// supercheck.toml, stopping at the filesystem root.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "supercheck.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles merges config files in precedence order, lowest to
// highest: system < user < project. Environment variables (bound above via
// AutomaticEnv) always win over any file, since the files are merged into
// viper's config layer, which viper checks after env.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	userDir := filepath.Join(homeDir, ".supercheck")
	_ = os.MkdirAll(userDir, defaultDirPermissions)

	configPaths := []string{
		"/etc/supercheck/config.toml",
		filepath.Join(userDir, "config.toml"),
	}

	if project := findProjectConfig(); project != "" {
		configPaths = append(configPaths, project)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(configPath)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}

		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
	}
}

// Get returns a configuration value using dot notation.
func Get(key string) interface{} { return initViper().Get(key) }

// GetString returns a configuration value as a string using dot notation.
func GetString(key string) string { return initViper().GetString(key) }

// GetBool returns a configuration value as a bool using dot notation.
func GetBool(key string) bool { return initViper().GetBool(key) }

// GetInt returns a configuration value as an int using dot notation.
func GetInt(key string) int { return initViper().GetInt(key) }

// Set sets a configuration value at runtime using dot notation.
func Set(key string, value interface{}) { initViper().Set(key, value) }
