package main

import (
	"os/signal"
	"syscall"

	"github.com/raaihank/doc-sanitizer/internal/bootstrap"
	"github.com/raaihank/doc-sanitizer/internal/config"
	"github.com/raaihank/doc-sanitizer/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// --- Serve ---

var servePort int

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload API with the tool endpoints",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override server.port")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer log.Sync()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	rt, err := bootstrap.Build(cfg, log, bootstrap.Options{Files: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := config.Watch(func(next *config.Config) {
		if err := log.SetLevel(next.Logging.Level); err != nil {
			log.Warn("Ignoring invalid log level", zap.String("level", next.Logging.Level))
		}
	}, func(err error) {
		log.Warn("Configuration reload rejected", zap.Error(err))
	}); err != nil {
		log.Debug("Configuration hot reload disabled", zap.Error(err))
	}

	server.Version = version
	srv, err := server.New(cfg, rt.App, server.Options{Tools: rt.Tools, Metrics: rt.Metrics}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, cfg.Server.ShutdownTimeout)
}
