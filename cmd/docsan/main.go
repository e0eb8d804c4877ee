package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raaihank/doc-sanitizer/internal/bootstrap"
	"github.com/raaihank/doc-sanitizer/internal/config"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// --- Root ---

var (
	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docsan",
		Short:         "Sanitize documents with a local model before sharing them",
		Long:          `docsan manages sanitization profiles, sanitizes documents through a local Ollama model, and serves the upload API and tool endpoints.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	rootCmd.AddCommand(
		newProfilesCmd(),
		newSanitizeCmd(),
		newServeCmd(),
		newStatusCmd(),
		newToolsCmd(),
	)
	return rootCmd
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.Is(err, profile.ErrCorruptStore) {
		fmt.Fprintln(w, "The profile store could not be read. Run 'docsan profiles reset --force' to move it aside and start over.")
	}
}

// loadConfig reads the config and builds a logger writing to out.
// Interactive commands stay quiet unless --verbose is set.
func loadConfig(out io.Writer, quiet bool) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if quiet && !verbose {
		cfg.Logging.Level = "warn"
	}
	log, err := bootstrap.NewLogger(cfg, out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// commandContext returns the command context, never nil
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
