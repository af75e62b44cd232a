package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/abinit/psrepos/internal/registry"
)

// repoRow is the JSON form of a repository listing.
type repoRow struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	XC         string `json:"xc"`
	Relativity string `json:"relativity"`
	Format     string `json:"format"`
	Version    string `json:"version"`
	Installed  bool   `json:"installed"`
	Dir        string `json:"dir"`
	URL        string `json:"url"`
}

func toRows(entries []registry.Entry) []repoRow {
	rows := make([]repoRow, len(entries))
	for i, e := range entries {
		rows[i] = repoRow{
			ID:         e.ID,
			Name:       e.Name,
			Category:   string(e.Category),
			XC:         e.XC,
			Relativity: string(e.Relativity),
			Format:     string(e.Format),
			Version:    e.Version,
			Installed:  e.Installed,
			Dir:        e.Dir,
			URL:        e.URL,
		}
	}
	return rows
}

// printRepos renders repositories with their installation state.
func printRepos(w io.Writer, entries []registry.Entry, verbose bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := table.Row{"ID", "Name", "Type", "XC", "Relativity", "Format", "Installed"}
	if verbose {
		header = append(header, "URL")
	}
	t.AppendHeader(header)
	for _, e := range entries {
		installed := "no"
		if e.Installed {
			installed = "yes"
		}
		row := table.Row{e.ID, e.Name, e.Category, e.XC, e.Relativity, e.Format, installed}
		if verbose {
			row = append(row, e.URL)
		}
		t.AppendRow(row)
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
