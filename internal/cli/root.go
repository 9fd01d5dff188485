// Package cli implements the cobra-based CLI commands for cv-container.
//
// Each subcommand (apply, plan, validate, watch) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/logging"
	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/telemetry"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbose raises the log level to debug unless --log-level is given.
	verbose bool

	// logLevel and logFormat configure the zerolog logger on stderr.
	logLevel  string
	logFormat string

	// configPath points at a YAML or TOML file with connection settings.
	configPath string

	// otlpEndpoint enables span export when set.
	otlpEndpoint string

	// shutdownTracing flushes spans; set by the root pre-run hook.
	shutdownTracing telemetry.ShutdownFunc
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action; it only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cv-container",
		Short: "Reconcile CloudVision containers with a declared topology",
		Long: `cv-container creates the CloudVision Portal containers declared in a
topology file, parents first, and reports what it did.

Containers that already exist are left alone, so running it twice in a row
changes nothing the second time. Use --check to see what would be created
without touching CloudVision.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			shutdown, err := telemetry.Setup(cmd.Context(), otlpEndpoint, Version)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "cannot set up tracing", err)
			}
			shutdownTracing = shutdown
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error, disabled (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole,
		"Log format: console, json")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Connection settings file (.yml, .yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "",
		"Export reconcile spans to this OTLP/HTTP endpoint (e.g. http://localhost:4318)")

	rootCmd.AddCommand(NewApplyCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewWatchCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// CLIError types carry their own exit codes; other errors are classified
// by toCLIError first.
func Execute(ctx context.Context, rootCmd *cobra.Command) {
	err := rootCmd.ExecuteContext(ctx)
	if shutdownTracing != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = shutdownTracing(flushCtx)
		cancel()
	}
	if err != nil {
		cliErr := toCLIError(err)
		printError(cliErr.Message, cliErr.Err)
		os.Exit(int(cliErr.Code))
	}
}

// toCLIError maps domain errors onto exit codes: configuration errors are
// invalid topologies, remote errors mean CloudVision could not be used.
func toCLIError(err error) *model.CLIError {
	var cliErr *model.CLIError
	switch {
	case errors.As(err, &cliErr):
		return cliErr
	case model.IsConfigurationError(err):
		return model.WrapCLIError(model.ExitInvalidTopology, "invalid topology", err)
	case model.IsRemoteError(err):
		return model.WrapCLIError(model.ExitCVPUnreachable, "CloudVision request failed", err)
	case errors.Is(err, context.Canceled):
		return model.WrapCLIError(model.ExitGeneralError, "interrupted", err)
	default:
		return model.NewCLIError(model.ExitGeneralError, err.Error())
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// newLogger builds the stderr logger from the global flags.
func newLogger() (zerolog.Logger, error) {
	level := logLevel
	if level == "" && verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: logFormat})
	if err != nil {
		return logger, model.WrapCLIError(model.ExitGeneralError, "invalid logging flags", err)
	}
	return logger, nil
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
