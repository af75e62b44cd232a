package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abinit/psrepos/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "abips"
	fileType = "yaml"
)

// Recognized configuration keys.
const (
	KeyReposRoot = "repos_root"
	KeyMirror    = "mirror"
	KeyRetries   = "retries"
	KeyJobs      = "jobs"
	KeyLogLevel  = "log_level"
)

// Keys lists every key accepted by Set.
var Keys = []string{KeyReposRoot, KeyMirror, KeyRetries, KeyJobs, KeyLogLevel}

// Default values applied by Load.
const (
	DefaultRetries = 3
	DefaultJobs    = 1
)

// Dir returns the path to the config directory (~/.abinit/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.abinit/abips.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// DefaultReposRoot returns the default installation directory (~/.abinit/pseudos).
func DefaultReposRoot() string {
	return filepath.Join(Dir(), "pseudos")
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyReposRoot, DefaultReposRoot())
	viper.SetDefault(KeyRetries, DefaultRetries)
	viper.SetDefault(KeyJobs, DefaultJobs)
	viper.SetDefault(KeyLogLevel, "warn")

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// GetInt returns an integer config value, or 0 when unset or malformed.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// ReposRoot returns the configured installation root with ~ expanded.
func ReposRoot() string {
	return expandHome(viper.GetString(KeyReposRoot))
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, Keys)
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func isKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
