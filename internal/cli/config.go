package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/branding"
	"github.com/abinit/psrepos/internal/config"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage user settings",
	Long: `Read and write settings stored at ~/.abinit/abips.yaml.

Keys: repos_root, mirror, retries, jobs, log_level. Each can also be set with
an environment variable, e.g. ` + branding.EnvVar(config.KeyReposRoot) + `.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == config.KeyRetries || key == config.KeyJobs {
			if n, err := strconv.Atoi(value); err != nil || n < 0 {
				return fmt.Errorf("setting config key %q: %q is not a non-negative integer", key, value)
			}
		}
		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("setting config key %q: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.Get(args[0]))
		return nil
	},
}
