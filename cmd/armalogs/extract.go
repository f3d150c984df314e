package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/parser"
	"github.com/armalogs/backend/internal/storage"
)

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [root...]",
		Short: "Extract connect/disconnect events from server logs",
		Long: `Walks each root (default ".") for Arma server installations, recognised by
their "addons" directory, and extracts events from every log below them. The
output format follows the file extension: .csv, .duckdb/.db, .msgpack/.mpk or
.sqlite/.sqlite3.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			markersFile := cfg.Extract.MarkersFile
			if cmd.Flags().Changed("markers") {
				// relative to the working directory, not the config file
				markersFile, _ = cmd.Flags().GetString("markers")
			}
			markers, err := parser.LoadMarkers(markersFile)
			if err != nil {
				return err
			}
			if _, err := storage.GetGlobalRegistry().FindCodec(cfg.Extract.Output); err != nil {
				return err
			}

			hooks := extract.Hooks{
				OnServer: func(dir string) {
					fmt.Fprintf(out, "Scanning %s\n", dir)
				},
				OnFile: func(r models.FileResult) {
					if r.Err != nil {
						fmt.Fprintf(errOut, "Skipping %s: %v\n", r.Path, r.Err)
						return
					}
					fmt.Fprintf(out, "Events found: %4d in %s\n", len(r.Events), r.Path)
				},
			}

			events, _, err := extract.Run(cmd.Context(), extract.Options{
				Roots:   args,
				Pattern: cfg.Extract.LogPattern,
				Workers: cfg.Extract.Workers,
				Markers: markers,
			}, hooks)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Writing %d Events to %s\n", len(events), cfg.Extract.Output)
			return storage.Save(cfg.Extract.Output, events)
		},
	}

	cmd.Flags().StringP("output", "o", "", "event table to write (default connects.csv)")
	cmd.Flags().Int("workers", 0, "log files read in parallel (default GOMAXPROCS)")
	cmd.Flags().String("markers", "", "YAML file overriding the log line markers")
	cmd.Flags().String("pattern", "", "log file name pattern (default *.log)")

	a.bindFlag(cmd, "extract.output", "output")
	a.bindFlag(cmd, "extract.workers", "workers")
	a.bindFlag(cmd, "extract.markers-file", "markers")
	a.bindFlag(cmd, "extract.log-pattern", "pattern")

	return cmd
}
