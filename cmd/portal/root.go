package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openhouse/portalcache/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Purchaser portal API and client",
	Long: `portal serves the purchaser portal API and offers a command line
client for it.

The client keeps document listings in a stale-while-revalidate cache, so a
listing is shown at once and refreshed in the background when it is old.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its settings from the standard flag set.
		return flag.CommandLine.Parse(nil)
	},
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 100 megabytes max before rolling the log files
	glog.MaxSize = 1024 * 1024 * 100

	rootCmd.SetContext(ctx)
	err := rootCmd.Execute()
	glog.Flush()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'portal -h' for help")
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")

	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newDiagnoseCmd())
	rootCmd.AddCommand(newSignOutCmd())
}

// loadConfig reads the config file. Client commands work without one and
// fall back to the client defaults.
func loadConfig(required bool) (*config.Config, error) {
	if !required {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return config.Defaults(), nil
		}
	}
	return config.Load(configPath)
}
