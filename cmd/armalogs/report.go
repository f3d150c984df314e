package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/armalogs/backend/internal/report"
	"github.com/armalogs/backend/internal/storage"
)

var reportDescriptions = map[report.Mode]string{
	report.ModePlaytime: "Total playtime per player",
	report.ModeServers:  "Playtime per player and server",
	report.ModeMissions: "Playtime per player, attributed to the mission running at disconnect",
	report.ModeSessions: "Every connect/disconnect pair per player and server",
}

func newReportCmds(a *app) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(report.Modes()))
	for _, mode := range report.Modes() {
		cmds = append(cmds, newReportCmd(a, mode))
	}
	return cmds
}

// stdoutOutput as -o writes the report to stdout.
const stdoutOutput = "-"

func newReportCmd(a *app, mode report.Mode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [input]", mode),
		Short: reportDescriptions[mode],
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := a.cfg.Report.Input
			if len(args) == 1 {
				input = args[0]
			}
			output := a.cfg.Report.Output
			if cmd.Flags().Changed("output") {
				// every mode has its own flag, so it is read here rather than bound
				output, _ = cmd.Flags().GetString("output")
			}

			events, err := storage.Load(input)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("input file not found: %s", input)
				}
				return err
			}

			result, err := report.Build(events, mode)
			if err != nil {
				return err
			}

			if output == stdoutOutput {
				return report.WriteCSV(cmd.OutOrStdout(), result)
			}
			return writeReportFile(output, result)
		},
	}

	cmd.Flags().StringP("output", "o", "", `report CSV to write, "-" for stdout (default report.csv)`)

	return cmd
}

func writeReportFile(path string, result *report.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return report.WriteCSV(f, result)
}
