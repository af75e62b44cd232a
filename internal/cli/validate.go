package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/integrity"
	"github.com/abinit/psrepos/internal/registry"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate [id...]",
	Short: "Verify the checksums of installed repositories",
	Long: `Verify every file of the given repositories against the digests recorded at
install time. Without ids, every installed repository is checked.

Every corrupted or missing file is reported; the exit status is 1 when any
violation or error was found.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	root, err := reposRoot()
	if err != nil {
		return err
	}
	reg := loadRegistry()

	var descs []registry.Descriptor
	if len(args) == 0 {
		descs, err = registry.ListInstalled(reg, root)
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Could not find any pseudopotential repository installed in:", root)
			return nil
		}
	} else {
		descs, err = descriptorsByID(reg, args)
		if err != nil {
			return err
		}
	}

	reports, err := integrity.ValidateAll(cmd.Context(), descs, root, jobs())
	if validateJSON {
		if jsonErr := printJSON(cmd.OutOrStdout(), reports); jsonErr != nil {
			return jsonErr
		}
		if err != nil {
			return err
		}
		for _, r := range reports {
			if !r.OK() {
				return failed()
			}
		}
		return nil
	}
	if !printReports(cmd, reports, err) {
		return failed()
	}
	return nil
}

// printReports prints validation results and reports whether everything
// was clean.
func printReports(cmd *cobra.Command, reports []integrity.Report, err error) bool {
	out := cmd.OutOrStdout()
	ok := err == nil
	fmt.Fprintln(out)
	for _, r := range reports {
		fmt.Fprintln(out, r)
		if !r.OK() {
			ok = false
		}
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nThe following repositories could not be validated:")
		for _, e := range unjoin(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
		}
	}
	return ok
}

// unjoin splits an errors.Join aggregate.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
