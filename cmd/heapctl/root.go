package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logLevel string
	logFile  string
	logJSON  bool
)

// closeLog releases the log file opened by setupLogging.
var closeLog = func() error { return nil }

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Replay allocation workloads and inspect heap images",
	Long: `heapctl drives the first-fit free-list heap from the command line.
It replays allocation scripts against a real memory region, checks the
free-list invariants as it goes, and inspects heap images written by a
previous replay.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setupLogging() },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Enable structured logging at this level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit log records as JSON")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		_ = closeLog()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging enables the global logger when --log-level is given or when
// HEAP_LOG_ALLOC asks for allocator tracing.
func setupLogging() error {
	enabled := logLevel != "" || os.Getenv("HEAP_LOG_ALLOC") != ""
	var level slog.Level
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
	}
	closer, err := logger.Init(logger.Options{
		Enabled: enabled,
		Path:    logFile,
		Output:  os.Stderr,
		Level:   level,
		JSON:    logJSON,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	closeLog = closer
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
