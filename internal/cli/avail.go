package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/registry"
)

var availJSON bool

var availCmd = &cobra.Command{
	Use:   "avail",
	Short: "Show registered repositories and their ids",
	Args:  cobra.NoArgs,
	RunE:  runAvail,
}

func init() {
	availCmd.Flags().BoolVar(&availJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(availCmd)
}

func runAvail(cmd *cobra.Command, args []string) error {
	root, err := reposRoot()
	if err != nil {
		return err
	}
	entries := registry.Status(loadRegistry().All(), root)
	if availJSON {
		return printJSON(cmd.OutOrStdout(), toRows(entries))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "List of available pseudopotential repositories:")
	fmt.Fprintln(cmd.OutOrStdout())
	printRepos(cmd.OutOrStdout(), entries, verbose > 0)
	return nil
}
