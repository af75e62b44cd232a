package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// confirm asks whether to continue. Only an explicit "n" or "no" declines;
// end of input counts as consent so piped runs keep working.
func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "\nDo you want to continue [Y/n] ")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		fmt.Fprintln(cmd.OutOrStdout())
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer != "n" && answer != "no"
}
