package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"kubeport/internal/daemonctl"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List port-forward daemons and their health",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := daemonctl.List(cmd.Context(), cfg.Paths.SocketDir, cfg.Paths.SocketExt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No port-forward daemons found")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.Project, entry.Service, string(entry.State), entry.Socket})
			}
			var colorer cellColorer
			if isTerminal(out) {
				colorer = stateColors
			}
			fmt.Fprintln(out, renderTable([]string{"Project", "Service", "State", "Socket"}, rows, colorer))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func stateColors(column int, value string) text.Colors {
	if column != 2 {
		return nil
	}
	switch daemonctl.DaemonState(value) {
	case daemonctl.StateHealthy:
		return text.Colors{text.FgGreen}
	case daemonctl.StateUnhealthy:
		return text.Colors{text.FgYellow}
	case daemonctl.StateStale:
		return text.Colors{text.FgRed}
	default:
		return nil
	}
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
