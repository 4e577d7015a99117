// Package commands holds the auctiond command line.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"market-connect/internal/config"
	"market-connect/utils"
)

var cfg *config.Config

// global flags
var configPath, logLevel string

var RootCmd = &cobra.Command{
	Use:           "auctiond",
	Short:         "Live auction bidding server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadAndValidate(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		utils.ConfigureLogger(loaded.Log.Level, loaded.Log.Format, os.Stdout)
		cfg = loaded
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "", "Override the configured log level")
	RootCmd.AddCommand(ServeCmd, TokenCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
