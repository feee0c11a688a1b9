// Command fundctl is the operator CLI: a local chat session against the
// configured backends, a tax calculator, schema migrations and a way to
// inject chat messages into the inbound queue.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"agencyfund/internal/cli"
	"agencyfund/internal/config"
	applog "agencyfund/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "fundctl",
	Short:         "Operate agency fund ledgers from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cli.LoadEnvFile()
		cfg := applog.DefaultConfig()
		cfg.Level = slog.LevelWarn
		if verbose {
			cfg.Level = slog.LevelDebug
		}
		cfg.Output = cmd.ErrOrStderr()
		cfg.Component = "fundctl"
		applog.SetDefault(applog.New(cfg))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// loadConfig reads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
