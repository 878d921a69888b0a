// Package cli implements the command-line interface for bcfeed.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bcfeed/bcfeed/internal/core"
)

// Global flags
var (
	verbose bool
	quiet   bool
	dataDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "bcfeed",
	Short:   "bcfeed – Bandcamp release dashboard and cache",
	Long:    `Scrapes Bandcamp "new release" notification emails from Gmail, caches the releases by date, and serves them to the browser dashboard.`,
	Version: core.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress messages")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", fmt.Sprintf("Override the data directory (also %s)", core.DataDirEnvVar))
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	return core.DataDir()
}
