package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mini-ttc/etaboard/internal/config"
)

type EtaCtlApp struct {
	ConfigPath string
}

func Execute() error {
	app := &EtaCtlApp{}
	rootCmd := NewRootCmd(app)
	return rootCmd.Execute()
}

func NewRootCmd(app *EtaCtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "etactl",
		Short:         "CLI tool used to inspect TTC stop boards and manage station data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(
		&app.ConfigPath,
		"config",
		"",
		"Path to YAML configuration file (overrides CONFIG_FILE)",
	)

	cmd.AddCommand(NewEtaCmd(app))
	cmd.AddCommand(NewSourceCmd(app))
	cmd.AddCommand(NewImportStopsCmd(app))

	return cmd
}

func (app *EtaCtlApp) loadConfig() (*config.Config, error) {
	if app.ConfigPath != "" {
		os.Setenv("CONFIG_FILE", app.ConfigPath)
	}
	return config.Load()
}
