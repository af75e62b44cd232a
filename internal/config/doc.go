// Package config manages user-level settings stored at ~/.abinit/abips.yaml.
// Keys can be overridden with ABIPS_* environment variables; command-line
// flags take precedence over both and are applied by the cli package.
package config
