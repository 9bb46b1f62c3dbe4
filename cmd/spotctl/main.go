// Command spotctl is the operator CLI: fetch prices into the store, inspect optimal windows
// and cache lifetimes without running the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/logging"
	"github.com/spf13/cobra"
)

var Version = "?.?.?"

var (
	cfgFile  string
	logLevel string
	cnfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:           "spotctl",
	Short:         "Electricity spot price windows from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := hours.SetMarketTimezone(c.Market.GetTimezone()); err != nil {
			return err
		}

		level := new(slog.LevelVar)
		level.Set(c.Logging.GetConsoleLevel())
		if logLevel != "" {
			level.Set(logging.LevelFromString(&logLevel))
		}
		slog.SetDefault(slog.New(logging.NewConsoleHandler(os.Stderr, level)))

		cnfg = c
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override console log level defined in config")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(optimalCmd)
	rootCmd.AddCommand(ttlCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
