package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fif/internal/config"
)

var (
	verbose   bool
	cacheSize int
)

var rootCmd = &cobra.Command{
	Use:   "fif",
	Short: "Inspect and build Forensic Image Format (FIF) archives",
	Long: `fif is a command-line tool for creating, inspecting, and extracting
Forensic Image Format archives: ZIP64-based containers of chunked,
optionally compressed and encrypted, forensic byte streams.

Commands:
  create-volume    Start a new archive with one empty volume
  info             Print an archive's UUID, volumes, and member index
  extract-stream   Read a stream out of an archive to a local file
  put-stream       Write a local file into an archive as an Image stream`,
	Version: "0.1.0-dev",
}

// Execute runs the root command (subcommands attach themselves in their
// own init functions), printing any error to stderr and exiting with
// status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose flag (accepted by every command; no command changes its output when it is set)")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "chunk cache byte limit per open stream (0 = config default)")
}

// resolvedCacheSize honors an explicit --cache-size flag, falling back to
// internal/config's viper-loaded default.
func resolvedCacheSize() int {
	if cacheSize > 0 {
		return cacheSize
	}
	cfg, err := config.Load()
	if err != nil {
		return 0
	}
	return cfg.CacheSize
}
