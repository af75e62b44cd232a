package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/registry"
)

var getCmd = &cobra.Command{
	Use:     "get <id>...",
	Aliases: []string{"get_byid"},
	Short:   "Install repositories by id",
	Long:    `Install repositories by id. Use the avail command to get the ids.`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGet,
}

var (
	ncXC          string
	ncRelativity  string
	ncFormat      string
	ncAllVersions bool
)

var ncGetCmd = &cobra.Command{
	Use:     "nc-get",
	Aliases: []string{"nc_get"},
	Short:   "Install norm-conserving repositories",
	Long: `Install the norm-conserving repositories matching the filters. By default
every functional, relativity, and format is fetched, latest version only.`,
	Args: cobra.NoArgs,
	RunE: runNCGet,
}

var (
	pawXC          string
	pawAllVersions bool
)

var pawGetCmd = &cobra.Command{
	Use:     "paw-get",
	Aliases: []string{"paw_get"},
	Short:   "Install PAW repositories in PAWXML format",
	Args:    cobra.NoArgs,
	RunE:    runPAWGet,
}

func init() {
	ncGetCmd.Flags().StringVar(&ncXC, "xc", "", "Exchange-correlation functional (e.g. PBE, PBEsol, LDA)")
	ncGetCmd.Flags().StringVar(&ncRelativity, "relativity", "", "SR (scalar) or FR (fully relativistic)")
	ncGetCmd.Flags().StringVar(&ncFormat, "format", "", "File format: psp8, upf2 or psml")
	ncGetCmd.Flags().BoolVar(&ncAllVersions, "all-versions", false, "Include older versions")
	pawGetCmd.Flags().StringVar(&pawXC, "xc", "", "Exchange-correlation functional (e.g. PBE, LDA)")
	pawGetCmd.Flags().BoolVar(&pawAllVersions, "all-versions", false, "Include older versions")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(ncGetCmd)
	rootCmd.AddCommand(pawGetCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	reg := loadRegistry()
	descs, err := descriptorsByID(reg, args)
	if err != nil {
		return err
	}
	root, err := reposRoot()
	if err != nil {
		return err
	}

	pending := notInstalled(descs, root)
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Repositories are already installed!")
		installed, err := registry.ListInstalled(reg, root)
		if err != nil {
			return err
		}
		printInstalled(cmd, installed, root)
		return failed()
	}
	return installSelected(cmd, reg, "The following pseudopotential repositories will be installed:", pending, root)
}

func runNCGet(cmd *cobra.Command, args []string) error {
	sel := registry.Selector{Category: registry.NC, XC: ncXC, Latest: !ncAllVersions}
	if ncRelativity != "" {
		rel := registry.Relativity(strings.ToUpper(ncRelativity))
		if rel != registry.ScalarRelativistic && rel != registry.FullyRelativistic {
			return fmt.Errorf("invalid relativity %q: want SR or FR", ncRelativity)
		}
		sel.Relativity = rel
	}
	if ncFormat != "" {
		f := registry.Format(strings.ToLower(ncFormat))
		if f != registry.FormatPSP8 && f != registry.FormatUPF2 && f != registry.FormatPSML {
			return fmt.Errorf("invalid format %q: want psp8, upf2 or psml", ncFormat)
		}
		sel.Format = f
	}
	return getSelected(cmd, sel, "NC")
}

func runPAWGet(cmd *cobra.Command, args []string) error {
	return getSelected(cmd, registry.Selector{Category: registry.PAW, XC: pawXC, Latest: !pawAllVersions}, "PAW")
}

func getSelected(cmd *cobra.Command, sel registry.Selector, label string) error {
	reg := loadRegistry()
	root, err := reposRoot()
	if err != nil {
		return err
	}
	matched := reg.Filter(sel)
	if len(matched) == 0 {
		return fmt.Errorf("no %s repository matches the given filters", label)
	}
	pending := notInstalled(matched, root)
	if len(pending) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "All matching %s repositories are already installed in %s.\n", label, root)
		return nil
	}
	return installSelected(cmd, reg, fmt.Sprintf("The following %s repositories will be installed:", label), pending, root)
}

// installSelected confirms with the user, installs descs, and prints the
// outcome followed by the installed listing.
func installSelected(cmd *cobra.Command, reg *registry.Registry, heading string, descs []registry.Descriptor, root string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, heading)
	fmt.Fprintln(out)
	printRepos(out, registry.Status(descs, root), false)

	if !assumeYes && !confirm(cmd) {
		fmt.Fprintln(out, "Installation cancelled.")
		return errAborted
	}

	fmt.Fprintln(out, "Fetching repositories. It may take some time ...")
	res := newInstaller(cmd).InstallAll(cmd.Context(), descs, root, jobs())
	for _, d := range res.Succeeded {
		fmt.Fprintf(out, "Installed %s\n", d)
	}
	if !res.OK() {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nThe following repositories could not be installed:")
		for _, f := range res.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", f)
		}
	}

	fmt.Fprintln(out)
	installed, err := registry.ListInstalled(reg, root)
	if err != nil {
		return err
	}
	printInstalled(cmd, installed, root)

	switch {
	case res.OK():
		return nil
	case errors.Is(res.Err(), context.Canceled):
		return errAborted
	default:
		return failed()
	}
}

// descriptorsByID parses repository ids and resolves them in order.
func descriptorsByID(reg *registry.Registry, args []string) ([]registry.Descriptor, error) {
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid repository id %q", a)
		}
		ids[i] = id
	}
	return reg.ByIDs(ids...)
}

// notInstalled drops installed repositories and repeated ids.
func notInstalled(descs []registry.Descriptor, root string) []registry.Descriptor {
	seen := map[int]bool{}
	var out []registry.Descriptor
	for _, d := range descs {
		if seen[d.ID] || registry.IsInstalled(d, root) {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}
