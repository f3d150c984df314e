// Command armalogs extracts player connect/disconnect events from Arma server
// logs and reports playtime from the extracted table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/armalogs/backend/internal/config"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var errNoCommand = errors.New("no command given")

// app carries the configuration shared by all subcommands.
type app struct {
	v          *viper.Viper
	cfg        *config.AppConfig
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "armalogs",
		Short: "Playtime reports from Arma server logs",
		Long: `armalogs scans Arma server installations for logs, extracts player
connect/disconnect and mission change events into an event table, and
aggregates that table into playtime reports.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Usage()
			return errNoCommand
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (env ARMALOGS_* overrides)")

	root.AddCommand(newExtractCmd(a))
	for _, cmd := range newReportCmds(a) {
		root.AddCommand(cmd)
	}

	return root
}

// bindFlag routes a command flag into the shared viper key.
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}
