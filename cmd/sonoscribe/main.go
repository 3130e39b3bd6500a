package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sonoscribe/sonoscribe/internal/apierr"
	"github.com/sonoscribe/sonoscribe/internal/audio"
	"github.com/sonoscribe/sonoscribe/internal/cli"
	"github.com/sonoscribe/sonoscribe/internal/ffmpeg"
	"github.com/sonoscribe/sonoscribe/internal/interrupt"
	"github.com/sonoscribe/sonoscribe/internal/lang"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitInterrupt     = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First signal drains in-flight jobs, second one forces an exit.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	// Root command.
	rootCmd := &cobra.Command{
		Use:     "sonoscribe",
		Short:   "Distributed audio transcription pipeline",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Subcommands.
	rootCmd.AddCommand(cli.StoreCmd(env))
	rootCmd.AddCommand(cli.WorkerCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	// Setup errors (ExitSetup = 3).
	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, cli.ErrAPIKeyMissing) ||
		errors.Is(err, cli.ErrStoreURLMissing) {
		return ExitSetup
	}

	// Validation errors (ExitValidation = 4).
	if errors.Is(err, cli.ErrInvalidLogLevel) || errors.Is(err, audio.ErrInvalidOverlap) ||
		errors.Is(err, lang.ErrInvalid) {
		return ExitValidation
	}

	// Transcription errors (ExitTranscription = 5).
	if errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, apierr.ErrAuthFailed) {
		return ExitTranscription
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"unknown command",
	"flag needs an argument",
	"invalid argument",
	"accepts ",
	"requires at least",
	"requires at most",
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
