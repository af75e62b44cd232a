// Package branding provides compile-time identity values for the CLI.
//
// Values come from the embedded branding.yaml; hard defaults apply when a
// key is missing so a stripped build still runs.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName         string `yaml:"cli_name"`
	DisplayName     string `yaml:"display_name"`
	Description     string `yaml:"description"`
	HomeDir         string `yaml:"home_dir"`
	EnvPrefix       string `yaml:"env_prefix"`
	RegistryBaseURL string `yaml:"registry_base_url"`
}

func load() {
	once.Do(func() {
		defaults = brand{
			CLIName:         "abips",
			DisplayName:     "abips",
			Description:     "Install and verify PseudoDojo pseudopotential repositories",
			HomeDir:         ".abinit",
			EnvPrefix:       "ABIPS",
			RegistryBaseURL: "https://github.com/PseudoDojo",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "abips").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".abinit").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "ABIPS").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// RegistryBaseURL returns the base URL that registry archive locations are
// relative to. A configured mirror replaces it at install time.
func RegistryBaseURL() string { load(); return defaults.RegistryBaseURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("ROOT") → "ABIPS_ROOT".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
