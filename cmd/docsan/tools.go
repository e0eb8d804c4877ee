package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// --- Tools ---

func newToolsCmd() *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Expose the sanitization tools to assistants",
	}

	stdioCmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tools as line-delimited JSON-RPC on stdin/stdout",
		Long: `Serves tools/list and tools/call over stdin and stdout. Logs go to stderr.
Uploads are shared with 'docsan serve' through the configured files.dir.`,
		Args: cobra.NoArgs,
		RunE: serveToolsStdio,
	}

	toolsCmd.AddCommand(stdioCmd)
	return toolsCmd
}

func serveToolsStdio(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol, so logs always go to stderr
	cfg, log, err := loadConfig(os.Stderr, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	rt, err := bootstrap.Build(cfg, log, bootstrap.Options{Files: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Files.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Files.Stop(stopCtx); err != nil {
			log.Warn("Failed to stop file reaper", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Tools.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
