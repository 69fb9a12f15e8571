package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "tarchan",
	Short:   "Channel server for the lockable-tarball protocol",
	Long: `Tarchan serves versioned content archives from an S3-compatible
bucket. Channel requests resolve to short-lived presigned redirects,
with a Link header advertising the permanently cacheable location.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path(s) (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "deployment environment: dev, prod (env: TARCHAN_ENV)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
