package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"mediafetch/pkg/config"
	"mediafetch/pkg/logger"
	"mediafetch/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
	notify     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediafetch",
	Short: "Fetch media from threads, galleries and URL lists without fetching anything twice",
	Long: `mediafetch downloads media files concurrently and remembers what it already
fetched for each collection, so repeated runs only download new media.

Features:
  - Concurrent downloads with a configurable limit
  - Retry with exponential backoff and Retry-After support
  - Per-collection fetch cache (text, sqlite or bolt)
  - Atomic file writes; a failed download never leaves a partial file
  - Progress line or interactive terminal UI
  - Scheduled re-fetching with watch`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() == "fetch" && verbose {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default searches ./.mediafetch.yaml and the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "list every fetched file and show logs")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a desktop notification when a job finishes")

	rootCmd.SetVersionTemplate(`mediafetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with command flags merged on top and
// initializes the global logger. Console logging is limited to errors unless
// --verbose or --log-level is given, so it does not tear the progress line.
func loadConfig(cmd *cobra.Command, flags map[string]interface{}, interactive bool) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	flags["notify"] = notify

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if cfg.Logging.File == "" && !cmd.Flags().Changed("log-level") {
		switch {
		case interactive:
			cfg.Logging.Level = "disabled"
		case !verbose:
			cfg.Logging.Level = "error"
		}
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("mediafetch starting")
	return cfg, nil
}
