package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/integrity"
	"github.com/abinit/psrepos/internal/registry"
	"github.com/abinit/psrepos/internal/tables"
)

var (
	listChecksums bool
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed repositories",
	Long: `List the pseudopotential repositories installed in the repository root.

With -v the standard table of every repository is printed as well; with
--checksums every installed file is verified.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listChecksums, "checksums", "c", false, "Validate checksums")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	root, err := reposRoot()
	if err != nil {
		return err
	}
	installed, err := registry.ListInstalled(loadRegistry(), root)
	if err != nil {
		return err
	}
	if listJSON {
		return printJSON(cmd.OutOrStdout(), toRows(registry.Status(installed, root)))
	}

	printInstalled(cmd, installed, root)
	if len(installed) == 0 || !listChecksums {
		return nil
	}

	reports, err := integrity.ValidateAll(cmd.Context(), installed, root, jobs())
	if !printReports(cmd, reports, err) {
		return failed()
	}
	return nil
}

// printInstalled prints the installed repositories and, with -v, their
// standard tables.
func printInstalled(cmd *cobra.Command, installed []registry.Descriptor, root string) {
	out := cmd.OutOrStdout()
	if len(installed) == 0 {
		fmt.Fprintln(out, "Could not find any pseudopotential repository installed in:", root)
		return
	}

	fmt.Fprintf(out, "The following pseudopotential repositories are installed in %s:\n\n", root)
	printRepos(out, registry.Status(installed, root), false)

	if verbose == 0 {
		fmt.Fprintln(out, "\nUse -v to print the pseudos")
		return
	}
	for _, d := range installed {
		t, err := tables.Open(d, root, registry.DefaultTier)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", d, err)
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, t)
	}
}
