package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/registry"
	"github.com/abinit/psrepos/internal/tables"
)

var (
	showTier string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show <id>...",
	Short: "Show the pseudopotential tables of installed repositories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showTier, "tier", string(registry.DefaultTier), "Accuracy tier (standard, stringent)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(showCmd)
}

type showEntry struct {
	Element string             `json:"element"`
	Path    string             `json:"path"`
	Hints   map[string]float64 `json:"hints,omitempty"`
}

type showTable struct {
	ID      int         `json:"id"`
	Name    string      `json:"name"`
	Tier    string      `json:"tier"`
	Pseudos []showEntry `json:"pseudos"`
}

func runShow(cmd *cobra.Command, args []string) error {
	descs, err := descriptorsByID(loadRegistry(), args)
	if err != nil {
		return err
	}
	root, err := reposRoot()
	if err != nil {
		return err
	}

	var (
		errs []error
		out  []showTable
	)
	for _, d := range descs {
		t, err := tables.Open(d, root, registry.Tier(showTier))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !showJSON {
			fmt.Fprintln(cmd.OutOrStdout(), t)
			fmt.Fprintln(cmd.OutOrStdout())
			continue
		}
		st := showTable{ID: d.ID, Name: d.Name, Tier: string(t.Tier())}
		for sym, e := range t.All() {
			st.Pseudos = append(st.Pseudos, showEntry{Element: sym, Path: e.Path(), Hints: e.Hints})
		}
		out = append(out, st)
	}
	if showJSON {
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
